package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// SubmitInput carries the seven raw field values of a single-entry
// submission. Date must be YYYY-MM-DD; text fields are bounded by the
// column sizes.
type SubmitInput struct {
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	ComplaintDetails string `json:"complaint_details" validate:"max=500"`
	ComplaintNumber  string `json:"complaint_number" validate:"max=100"`
	Circle           string `json:"circle" validate:"max=100"`
	ConsumerNumber   string `json:"consumer_number" validate:"max=100"`
	Dept             string `json:"dept" validate:"max=100"`
	Remarks          string `json:"remarks" validate:"max=500"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance reports field names by their JSON tag.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// trimmed returns a copy with surrounding whitespace removed from every field.
func (in SubmitInput) trimmed() SubmitInput {
	return SubmitInput{
		Date:             strings.TrimSpace(in.Date),
		ComplaintDetails: strings.TrimSpace(in.ComplaintDetails),
		ComplaintNumber:  strings.TrimSpace(in.ComplaintNumber),
		Circle:           strings.TrimSpace(in.Circle),
		ConsumerNumber:   strings.TrimSpace(in.ConsumerNumber),
		Dept:             strings.TrimSpace(in.Dept),
		Remarks:          strings.TrimSpace(in.Remarks),
	}
}

// toComplaint validates in and builds the record to persist.
func (in SubmitInput) toComplaint() (*domain.Complaint, error) {
	in = in.trimmed()
	if err := validatorInstance().Struct(in); err != nil {
		return nil, translateValidation(err)
	}
	d, err := domain.ParseSubmittedDate(in.Date)
	if err != nil {
		return nil, &domain.ValidationError{Field: "date", Message: "must be a valid date in YYYY-MM-DD format"}
	}
	return &domain.Complaint{
		Date:             d,
		ComplaintDetails: in.ComplaintDetails,
		ComplaintNumber:  in.ComplaintNumber,
		Circle:           in.Circle,
		ConsumerNumber:   in.ConsumerNumber,
		Dept:             in.Dept,
		Remarks:          in.Remarks,
	}, nil
}

// translateValidation converts validator output into the domain taxonomy.
// A single failure is returned as *domain.ValidationError.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Message: err.Error()}
	}
	out := make(domain.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, &domain.ValidationError{Field: fe.Field(), Message: describe(fe)})
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a valid date in YYYY-MM-DD format"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid (" + fe.Tag() + ")"
}
