package units

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"solv-backend/internal/domain"
	"solv-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
)

// nullable records whether a key was present in the body, so PATCH can tell
// an explicit null (clear the value) from an absent key (leave it alone).
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// UnitInput is the client-writable part of a Unit. id, created_at,
// updated_at and current_owner are server-assigned; when present in a body
// they are not decoded at all.
type UnitInput struct {
	CultivarName    *string                   `json:"cultivar_name"`
	Weight          nullable[json.RawMessage] `json:"weight"`
	UnitType        *string                   `json:"unit_type"`
	DateHarvested   *string                   `json:"date_harvested"`
	Status          *string                   `json:"status"`
	LabTestStatus   *string                   `json:"lab_test_status"`
	StorageLocation *string                   `json:"storage_location"`
	GPSCoordinates  *string                   `json:"gps_coordinates"`
	QualityGrade    *string                   `json:"quality_grade"`
	Description     nullable[string]          `json:"description"`
	ParentUnit      nullable[string]          `json:"parent_unit"`
}

// DecodeUnitInput parses a JSON request body. A value of the wrong JSON type
// comes back as validation.FieldErrors for its key.
func DecodeUnitInput(body []byte) (UnitInput, error) {
	var in UnitInput
	if len(body) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("decode unit: %w", validation.FromJSON(err))
	}
	return in, nil
}

// unitChanges is a validated UnitInput with every value parsed.
type unitChanges struct {
	cultivarName    *string
	weight          *float64
	unitType        *domain.UnitType
	dateHarvested   *time.Time
	status          *domain.UnitStatus
	labTestStatus   *domain.LabTestStatus
	storageLocation *string
	gpsCoordinates  *string
	qualityGrade    *domain.QualityGrade
	description     nullable[string]
	parentSet       bool
	parentID        *uuid.UUID
}

// validate checks every provided field. With requireAll (create, PUT) the
// fields without a default must be present.
func (in UnitInput) validate(requireAll bool) (*unitChanges, error) {
	fe := validation.FieldErrors{}
	ch := &unitChanges{description: in.Description}

	switch {
	case in.CultivarName == nil:
		if requireAll {
			fe.Add("cultivar_name", msgRequired)
		}
	case strings.TrimSpace(*in.CultivarName) == "":
		fe.Add("cultivar_name", msgBlank)
	default:
		name := strings.TrimSpace(*in.CultivarName)
		if len(name) > 100 {
			fe.Add("cultivar_name", "Ensure this field has no more than 100 characters.")
		}
		ch.cultivarName = &name
	}

	switch {
	case !in.Weight.Set:
		if requireAll {
			fe.Add("weight", msgRequired)
		}
	case in.Weight.Value == nil:
		fe.Add("weight", "This field may not be null.")
	default:
		w, ok := parseNumber(*in.Weight.Value)
		switch {
		case !ok:
			fe.Add("weight", "A valid number is required.")
		case w <= 0:
			fe.Add("weight", "Weight must be positive.")
		default:
			ch.weight = &w
		}
	}

	if in.UnitType != nil {
		t := domain.UnitType(*in.UnitType)
		if !t.Valid() {
			fe.Add("unit_type", invalidChoice(*in.UnitType))
		}
		ch.unitType = &t
	}
	if in.Status != nil {
		st := domain.UnitStatus(*in.Status)
		if !st.Valid() {
			fe.Add("status", invalidChoice(*in.Status))
		}
		ch.status = &st
	}
	if in.LabTestStatus != nil {
		ls := domain.LabTestStatus(*in.LabTestStatus)
		if !ls.Valid() {
			fe.Add("lab_test_status", invalidChoice(*in.LabTestStatus))
		}
		ch.labTestStatus = &ls
	}
	if in.QualityGrade != nil {
		g := domain.QualityGrade(*in.QualityGrade)
		if !g.Valid() {
			fe.Add("quality_grade", invalidChoice(*in.QualityGrade))
		}
		ch.qualityGrade = &g
	}

	if in.DateHarvested != nil {
		d, err := parseDate(*in.DateHarvested)
		if err != nil {
			fe.Add("date_harvested", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		}
		ch.dateHarvested = &d
	}

	if in.StorageLocation != nil {
		if len(*in.StorageLocation) > 255 {
			fe.Add("storage_location", "Ensure this field has no more than 255 characters.")
		}
		ch.storageLocation = in.StorageLocation
	}
	if in.GPSCoordinates != nil {
		if len(*in.GPSCoordinates) > 50 {
			fe.Add("gps_coordinates", "Ensure this field has no more than 50 characters.")
		}
		ch.gpsCoordinates = in.GPSCoordinates
	}

	if in.ParentUnit.Set {
		ch.parentSet = true
		if in.ParentUnit.Value != nil {
			id, err := uuid.Parse(*in.ParentUnit.Value)
			if err != nil {
				fe.Add("parent_unit", "Must be a valid UUID.")
			}
			ch.parentID = &id
		}
	}

	if err := fe.Err(); err != nil {
		return nil, err
	}
	return ch, nil
}

func (ch *unitChanges) apply(u *domain.Unit) {
	if ch.cultivarName != nil {
		u.CultivarName = *ch.cultivarName
	}
	if ch.weight != nil {
		u.Weight = *ch.weight
	}
	if ch.unitType != nil {
		u.UnitType = *ch.unitType
	}
	if ch.dateHarvested != nil {
		u.DateHarvested = datatypes.Date(*ch.dateHarvested)
	}
	if ch.status != nil {
		u.Status = *ch.status
	}
	if ch.labTestStatus != nil {
		u.LabTestStatus = *ch.labTestStatus
	}
	if ch.storageLocation != nil {
		u.StorageLocation = *ch.storageLocation
	}
	if ch.gpsCoordinates != nil {
		u.GPSCoordinates = *ch.gpsCoordinates
	}
	if ch.qualityGrade != nil {
		u.QualityGrade = *ch.qualityGrade
	}
	if ch.description.Set {
		u.Description = ch.description.Value
	}
	if ch.parentSet {
		u.ParentUnitID = ch.parentID
	}
}

// parseNumber accepts a JSON number or a string holding one.
func parseNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func invalidChoice(v string) string {
	return fmt.Sprintf("%q is not a valid choice.", v)
}

// parseDate accepts YYYY-MM-DD and, for clients that send full timestamps,
// RFC 3339 truncated to its date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return truncateDate(ts), nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UnitView is the transport representation of a Unit.
type UnitView struct {
	ID              uuid.UUID            `json:"id"`
	CultivarName    string               `json:"cultivar_name"`
	Weight          float64              `json:"weight"`
	UnitType        domain.UnitType      `json:"unit_type"`
	CurrentOwner    uuid.UUID            `json:"current_owner"`
	ParentUnit      *uuid.UUID           `json:"parent_unit"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Status          domain.UnitStatus    `json:"status"`
	LabTestStatus   domain.LabTestStatus `json:"lab_test_status"`
	StorageLocation string               `json:"storage_location"`
	Description     *string              `json:"description"`
	GPSCoordinates  string               `json:"gps_coordinates"`
	QualityGrade    domain.QualityGrade  `json:"quality_grade"`
	DateHarvested   string               `json:"date_harvested"`
}

func NewUnitView(u *domain.Unit) UnitView {
	return UnitView{
		ID:              u.ID,
		CultivarName:    u.CultivarName,
		Weight:          u.Weight,
		UnitType:        u.UnitType,
		CurrentOwner:    u.CurrentOwnerID,
		ParentUnit:      u.ParentUnitID,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		Status:          u.Status,
		LabTestStatus:   u.LabTestStatus,
		StorageLocation: u.StorageLocation,
		Description:     u.Description,
		GPSCoordinates:  u.GPSCoordinates,
		QualityGrade:    u.QualityGrade,
		DateHarvested:   time.Time(u.DateHarvested).Format(dateLayout),
	}
}

// NewUnitViews never returns nil so empty lists encode as [].
func NewUnitViews(units []domain.Unit) []UnitView {
	out := make([]UnitView, 0, len(units))
	for i := range units {
		out = append(out, NewUnitView(&units[i]))
	}
	return out
}
