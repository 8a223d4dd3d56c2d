// Package domain defines the complaint record model, its canonical field set,
// and the coercion rules that turn loosely typed input into a persisted
// Complaint. The Complaint type is mapped with GORM onto the single
// "complaints" table.
package domain

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Field names one canonical complaint attribute. The string value is the
// upper-case column header accepted on import and written on export.
type Field string

// Canonical fields, in export/header order.
const (
	FieldDate             Field = "DATE"
	FieldComplaintDetails Field = "COMPLAINT DETAILS"
	FieldComplaintNumber  Field = "COMPLAINT NUMBER"
	FieldCircle           Field = "CIRCLE"
	FieldConsumerNumber   Field = "CONSUMER NUMBER"
	FieldDept             Field = "DEPT"
	FieldRemarks          Field = "REMARKS"
)

// Fields lists every canonical field in canonical order.
var Fields = []Field{
	FieldDate,
	FieldComplaintDetails,
	FieldComplaintNumber,
	FieldCircle,
	FieldConsumerNumber,
	FieldDept,
	FieldRemarks,
}

// Column bounds (runes) for the text fields.
const (
	MaxLongText  = 500
	MaxShortText = 100
)

// DateLayout is the wire format of Complaint.Date.
const DateLayout = "2006-01-02"

// MaxLen returns the rune bound of a text field, or 0 for DATE.
func (f Field) MaxLen() int {
	switch f {
	case FieldComplaintDetails, FieldRemarks:
		return MaxLongText
	case FieldComplaintNumber, FieldCircle, FieldConsumerNumber, FieldDept:
		return MaxShortText
	}
	return 0
}

// Complaint is a single staff-recorded complaint. ID is assigned by the store
// on insert and never changes afterwards.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Date: calendar date of the complaint (indexed; list order key).
//   - ComplaintDetails / Remarks: free text, up to 500 runes.
//   - ComplaintNumber / Circle / ConsumerNumber / Dept: up to 100 runes.
//     Numbers are kept as text and are not unique.
type Complaint struct {
	ID               int64     `json:"id"                gorm:"primaryKey;autoIncrement"`
	Date             time.Time `json:"date"              gorm:"type:datetime;not null;index:idx_complaints_date"`
	ComplaintDetails string    `json:"complaint_details" gorm:"type:varchar(500)"`
	ComplaintNumber  string    `json:"complaint_number"  gorm:"type:varchar(100)"`
	Circle           string    `json:"circle"            gorm:"type:varchar(100)"`
	ConsumerNumber   string    `json:"consumer_number"   gorm:"type:varchar(100)"`
	Dept             string    `json:"dept"              gorm:"type:varchar(100)"`
	Remarks          string    `json:"remarks"           gorm:"type:varchar(500)"`
}

// TableName returns the database table name for Complaint.
func (Complaint) TableName() string { return "complaints" }

// complaintJSON mirrors Complaint with the date rendered as YYYY-MM-DD.
type complaintJSON struct {
	ID               int64  `json:"id"`
	Date             string `json:"date"`
	ComplaintDetails string `json:"complaint_details"`
	ComplaintNumber  string `json:"complaint_number"`
	Circle           string `json:"circle"`
	ConsumerNumber   string `json:"consumer_number"`
	Dept             string `json:"dept"`
	Remarks          string `json:"remarks"`
}

// MarshalJSON renders Date without a time component.
func (c Complaint) MarshalJSON() ([]byte, error) {
	return json.Marshal(complaintJSON{
		ID:               c.ID,
		Date:             c.Date.Format(DateLayout),
		ComplaintDetails: c.ComplaintDetails,
		ComplaintNumber:  c.ComplaintNumber,
		Circle:           c.Circle,
		ConsumerNumber:   c.ConsumerNumber,
		Dept:             c.Dept,
		Remarks:          c.Remarks,
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (c *Complaint) UnmarshalJSON(b []byte) error {
	var in complaintJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var d time.Time
	if in.Date != "" {
		var err error
		if d, err = time.Parse(DateLayout, in.Date); err != nil {
			return err
		}
	}
	*c = Complaint{
		ID:               in.ID,
		Date:             d,
		ComplaintDetails: in.ComplaintDetails,
		ComplaintNumber:  in.ComplaintNumber,
		Circle:           in.Circle,
		ConsumerNumber:   in.ConsumerNumber,
		Dept:             in.Dept,
		Remarks:          in.Remarks,
	}
	return nil
}

// Value returns the text rendering of field f (DATE as YYYY-MM-DD).
func (c *Complaint) Value(f Field) string {
	switch f {
	case FieldDate:
		return c.Date.Format(DateLayout)
	case FieldComplaintDetails:
		return c.ComplaintDetails
	case FieldComplaintNumber:
		return c.ComplaintNumber
	case FieldCircle:
		return c.Circle
	case FieldConsumerNumber:
		return c.ConsumerNumber
	case FieldDept:
		return c.Dept
	case FieldRemarks:
		return c.Remarks
	}
	return ""
}

// setText assigns a text field. DATE and unknown fields are ignored.
func (c *Complaint) setText(f Field, v string) {
	switch f {
	case FieldComplaintDetails:
		c.ComplaintDetails = v
	case FieldComplaintNumber:
		c.ComplaintNumber = v
	case FieldCircle:
		c.Circle = v
	case FieldConsumerNumber:
		c.ConsumerNumber = v
	case FieldDept:
		c.Dept = v
	case FieldRemarks:
		c.Remarks = v
	}
}

// Row returns the seven canonical values of c in canonical order.
func (c *Complaint) Row() []string {
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = c.Value(f)
	}
	return out
}

// RawRecord maps canonical fields to raw, untyped cell text. A missing key
// means the source had no such column.
type RawRecord map[Field]string

// Normalize coerces raw into a Complaint. It never fails:
//   - absent text fields become "";
//   - text is cleaned of spreadsheet artifacts and clipped to the column bound;
//   - an absent or unparseable DATE becomes now.
//
// This is the bulk-import policy. Single-entry submission uses the strict
// ParseSubmittedDate instead.
func Normalize(raw RawRecord, now time.Time) Complaint {
	c := Complaint{Date: now.UTC()}
	if v, ok := raw[FieldDate]; ok {
		if d, ok := ParseImportedDate(v); ok {
			c.Date = d
		}
	}
	for _, f := range Fields[1:] {
		c.setText(f, Clip(CleanText(raw[f]), f.MaxLen()))
	}
	return c
}

// CleanText trims whitespace and strips the Excel text-formula wrapper
// (="00123") that spreadsheets use to keep leading zeros.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// Clip truncates s to at most max runes. max <= 0 disables clipping.
func Clip(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
