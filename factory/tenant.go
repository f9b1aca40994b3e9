package factory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TENANT FILES
// =============================================================================
//
//   tenants:
//     - id: acme
//       locale: cz
//       policy:
//         default_total_days: 25
//       users:
//         - id: alice
//           role: admin
//         - id: bob
//           supervisor: alice
//     - id: globex
//       holidays:
//         entries:
//           - {month: 1, day: 1, name: New Year}
//
// A tenant needs either a locale or an explicit holidays table.

// File is a parsed tenant configuration file.
type File struct {
	Tenants []TenantYAML `yaml:"tenants" json:"tenants"`
}

type TenantYAML struct {
	ID       string         `yaml:"id" json:"id"`
	Locale   string         `yaml:"locale,omitempty" json:"locale,omitempty"`
	Holidays *holiday.Table `yaml:"holidays,omitempty" json:"holidays,omitempty"`
	Policy   *PolicyYAML    `yaml:"policy,omitempty" json:"policy,omitempty"`
	Users    []UserYAML     `yaml:"users,omitempty" json:"users,omitempty"`
}

type UserYAML struct {
	ID         string `yaml:"id" json:"id"`
	Email      string `yaml:"email,omitempty" json:"email,omitempty"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Role       string `yaml:"role,omitempty" json:"role,omitempty"`
	Supervisor string `yaml:"supervisor,omitempty" json:"supervisor,omitempty"`
	Employment string `yaml:"employment,omitempty" json:"employment,omitempty"`
	Inactive   bool   `yaml:"inactive,omitempty" json:"inactive,omitempty"`
}

// Tenant is a fully built tenant.
type Tenant struct {
	ID       generic.TenantID
	Table    holiday.Table
	Calendar *holiday.Calendar
	Policy   leave.Policy
	Users    []leave.User
}

// Parse decodes a tenant file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tenant file: %w", err)
	}
	return &f, nil
}

// LoadFile reads and decodes a tenant file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenant file: %w", err)
	}
	return Parse(data)
}

// Build validates every tenant and resolves calendars and policies.
func (f *File) Build(pf *PolicyFactory) ([]Tenant, error) {
	seen := make(map[string]bool)
	out := make([]Tenant, 0, len(f.Tenants))
	for _, ty := range f.Tenants {
		if ty.ID == "" {
			return nil, fmt.Errorf("%w: tenant without id", generic.ErrConfiguration)
		}
		if seen[ty.ID] {
			return nil, fmt.Errorf("%w: duplicate tenant %q", generic.ErrConfiguration, ty.ID)
		}
		seen[ty.ID] = true

		t, err := buildTenant(ty, pf)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", ty.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func buildTenant(ty TenantYAML, pf *PolicyFactory) (Tenant, error) {
	t := Tenant{ID: generic.TenantID(ty.ID)}

	switch {
	case ty.Holidays != nil:
		t.Table = *ty.Holidays
		if t.Table.Locale == "" {
			t.Table.Locale = ty.Locale
		}
	case ty.Locale != "":
		t.Table = holiday.Table{Locale: ty.Locale}
	default:
		return t, generic.ErrHolidayTableMissing
	}
	cal, err := t.Table.Build()
	if err != nil {
		return t, err
	}
	t.Calendar = cal

	var py PolicyYAML
	if ty.Policy != nil {
		py = *ty.Policy
	}
	if t.Policy, err = pf.FromYAML(py); err != nil {
		return t, err
	}

	for _, uy := range ty.Users {
		u, err := buildUser(t.ID, uy)
		if err != nil {
			return t, err
		}
		t.Users = append(t.Users, u)
	}
	return t, nil
}

func buildUser(tenant generic.TenantID, uy UserYAML) (leave.User, error) {
	if uy.ID == "" {
		return leave.User{}, fmt.Errorf("%w: user without id", generic.ErrConfiguration)
	}
	u := leave.User{
		ID:           generic.UserID(uy.ID),
		TenantID:     tenant,
		Email:        uy.Email,
		Name:         uy.Name,
		Role:         leave.RoleMember,
		SupervisorID: generic.UserID(uy.Supervisor),
		Employment:   leave.EmploymentEmployee,
		Active:       !uy.Inactive,
	}
	switch uy.Role {
	case "", string(leave.RoleMember):
	case string(leave.RoleAdmin):
		u.Role = leave.RoleAdmin
	default:
		return u, fmt.Errorf("%w: user %s has unknown role %q", generic.ErrConfiguration, uy.ID, uy.Role)
	}
	switch uy.Employment {
	case "", string(leave.EmploymentEmployee):
	case string(leave.EmploymentContractor):
		u.Employment = leave.EmploymentContractor
	default:
		return u, fmt.Errorf("%w: user %s has unknown employment %q", generic.ErrConfiguration, uy.ID, uy.Employment)
	}
	return u, nil
}

// =============================================================================
// APPLY
// =============================================================================

// UserSaver persists seed users.
type UserSaver interface {
	SaveUser(ctx context.Context, u leave.User) error
}

// Apply installs calendars and policies and saves the tenants' users.
func Apply(ctx context.Context, tenants []Tenant, reg *holiday.Registry, policies *leave.Policies, users UserSaver) error {
	for _, t := range tenants {
		if err := reg.Set(t.ID, t.Calendar); err != nil {
			return err
		}
		policies.Set(t.ID, t.Policy)
		for _, u := range t.Users {
			if err := users.SaveUser(ctx, u); err != nil {
				return fmt.Errorf("tenant %s: save user %s: %w", t.ID, u.ID, err)
			}
		}
	}
	return nil
}
