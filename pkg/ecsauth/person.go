package ecsauth

import "errors"

// PersonIDType is one of the enumerated identifier kinds a participant may
// use to identify a person.
type PersonIDType string

const (
	PersonUID            PersonIDType = "ecs_uid"
	PersonLogin          PersonIDType = "ecs_login"
	PersonEmail          PersonIDType = "ecs_email"
	PersonEPPN           PersonIDType = "ecs_eppn"
	PersonCustomUsername PersonIDType = "ecs_custom_username"
)

// ErrPersonNotIdentified means no usable person identifier could be
// extracted from the parameters.
var ErrPersonNotIdentified = errors.New("cannot identify person from parameters")

const (
	paramPersonIDType = "ecs_person_id_type"
	paramUIDHash      = "ecs_uid_hash"
)

// Valid reports whether t is one of the recognized identifier kinds.
func (t PersonIDType) Valid() bool {
	switch t {
	case PersonUID, PersonLogin, PersonEmail, PersonEPPN, PersonCustomUsername:
		return true
	}
	return false
}

// Native reports whether t identifies a person directly rather than through
// a mappable profile field. Only native types skip field-based account
// matching during reconciliation.
func (t PersonIDType) Native() bool {
	return t == PersonUID || t == PersonLogin
}

// PersonID is a typed person identifier.
type PersonID struct {
	Type PersonIDType
	ID   string
}

// SelectPersonID extracts the typed person identifier from the parameters.
// When ecs_person_id_type is present it must name a recognized type and the
// parameter named by that type must carry the value. Without it, the legacy
// scheme applies: ecs_uid, or failing that ecs_uid_hash, both treated as
// the implicit UID type.
func SelectPersonID(params Params) (PersonID, error) {
	if typ, ok := params[paramPersonIDType]; ok {
		t := PersonIDType(typ)
		if !t.Valid() {
			return PersonID{}, ErrPersonNotIdentified
		}
		value := params[typ]
		if value == "" {
			return PersonID{}, ErrPersonNotIdentified
		}
		return PersonID{Type: t, ID: value}, nil
	}

	if uid := params[string(PersonUID)]; uid != "" {
		return PersonID{Type: PersonUID, ID: uid}, nil
	}
	if uidHash := params[paramUIDHash]; uidHash != "" {
		return PersonID{Type: PersonUID, ID: uidHash}, nil
	}

	return PersonID{}, ErrPersonNotIdentified
}
