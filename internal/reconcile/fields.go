package reconcile

import (
	"github.com/stafflink/dirsync/internal/models"
)

// fieldBinding ties one syncable field identifier to its remote source and
// local destination. The merge ranges over these bindings, so override
// protection covers every syncable field by construction rather than by
// per-field checks.
type fieldBinding struct {
	field models.SyncField
	from  func(*models.RemoteUser) string
	get   func(*models.Employee) string
	set   func(*models.Employee, string)
}

var fieldBindings = []fieldBinding{
	{
		field: models.FieldGivenName,
		from:  func(r *models.RemoteUser) string { return r.GivenName },
		get:   func(e *models.Employee) string { return e.GivenName },
		set:   func(e *models.Employee, v string) { e.GivenName = v },
	},
	{
		field: models.FieldFamilyName,
		from:  func(r *models.RemoteUser) string { return r.FamilyName },
		get:   func(e *models.Employee) string { return e.FamilyName },
		set:   func(e *models.Employee, v string) { e.FamilyName = v },
	},
	{
		field: models.FieldDisplayName,
		from:  func(r *models.RemoteUser) string { return r.DisplayName },
		get:   func(e *models.Employee) string { return e.DisplayName },
		set:   func(e *models.Employee, v string) { e.DisplayName = v },
	},
	{
		field: models.FieldAvatarURL,
		from:  func(r *models.RemoteUser) string { return r.AvatarURL },
		get:   func(e *models.Employee) string { return e.AvatarURL },
		set:   func(e *models.Employee, v string) { e.AvatarURL = v },
	},
	{
		field: models.FieldPhone,
		from:  func(r *models.RemoteUser) string { return r.Phone },
		get:   func(e *models.Employee) string { return e.Phone },
		set:   func(e *models.Employee, v string) { e.Phone = v },
	},
	{
		field: models.FieldLocation,
		from:  func(r *models.RemoteUser) string { return r.Location },
		get:   func(e *models.Employee) string { return e.Location },
		set:   func(e *models.Employee, v string) { e.Location = v },
	},
}

// applyRemoteFields copies remote values onto the employee for every syncable
// field that is not under a manual override, skipping empty remote values so
// a sparse payload never blanks out good local data. Writing over an
// overridden field is a silent no-op. Reports whether anything changed.
func applyRemoteFields(emp *models.Employee, remote *models.RemoteUser) bool {
	changed := false
	for _, b := range fieldBindings {
		if emp.Overrides.Has(b.field) {
			continue
		}
		value := b.from(remote)
		if value == "" || value == b.get(emp) {
			continue
		}
		b.set(emp, value)
		changed = true
	}
	return changed
}
