package intake

import (
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/domain"
)

// SurveyDetails land survey request
type SurveyDetails struct {
	Location      string  `mapstructure:"location"`
	PlotSizeSqm   float64 `mapstructure:"plot_size_sqm,omitempty"`
	SurveyType    string  `mapstructure:"survey_type,omitempty"`
	PreferredDate string  `mapstructure:"preferred_date,omitempty"`
}

// ConsultationDetails engineering consultation
type ConsultationDetails struct {
	ServiceType        string  `mapstructure:"service_type"`
	ProjectLocation    string  `mapstructure:"project_location"`
	ProjectDescription string  `mapstructure:"project_description,omitempty"`
	Budget             float64 `mapstructure:"budget,omitempty"`
}

// CofODetails certificate of occupancy application
type CofODetails struct {
	PlotNumber  string `mapstructure:"plot_number"`
	Location    string `mapstructure:"location"`
	LandUse     string `mapstructure:"land_use"`
	TitleHolder string `mapstructure:"title_holder"`
}

// InvestmentDetails investment inquiry; Amount is a decimal string
type InvestmentDetails struct {
	Amount           string `mapstructure:"amount"`
	HorizonMonths    int    `mapstructure:"horizon_months,omitempty"`
	PropertyInterest string `mapstructure:"property_interest,omitempty"`
}

var (
	consultationServices = []string{"structural", "soil_test", "architectural", "supervision", "valuation"}
	landUses             = []string{"residential", "commercial", "industrial", "agricultural", "mixed"}
	surveyTypes          = []string{"boundary", "topographic", "perimeter", "as_built"}
)

// NormalizeDetails decodes raw into the struct for kind, validates it and
// returns the canonical map that gets stored.
func NormalizeDetails(kind domain.IntakeKind, raw map[string]interface{}) (map[string]interface{}, error) {
	var target interface{}
	switch kind {
	case domain.IntakeSurvey:
		d := &SurveyDetails{}
		if err := decode(raw, d); err != nil {
			return nil, err
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		target = d
	case domain.IntakeConsultation:
		d := &ConsultationDetails{}
		if err := decode(raw, d); err != nil {
			return nil, err
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		target = d
	case domain.IntakeCofO:
		d := &CofODetails{}
		if err := decode(raw, d); err != nil {
			return nil, err
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		target = d
	case domain.IntakeInvestment:
		d := &InvestmentDetails{}
		if err := decode(raw, d); err != nil {
			return nil, err
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		target = d
	default:
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown request kind %q", kind)
	}

	out := map[string]interface{}{}
	if err := mapstructure.Decode(target, &out); err != nil {
		return nil, apperr.Internal("failed to encode details", err)
	}
	return out, nil
}

func decode(raw map[string]interface{}, dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           dst,
	})
	if err != nil {
		return apperr.Internal("failed to build decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return apperr.Newf(apperr.CodeInvalidInput, "invalid details: %v", err)
	}
	return nil
}

func (d *SurveyDetails) validate() error {
	d.Location = strings.TrimSpace(d.Location)
	if d.Location == "" {
		return apperr.InvalidInput("location is required")
	}
	if d.PlotSizeSqm < 0 {
		return apperr.InvalidInput("plot_size_sqm must be >= 0")
	}
	if d.SurveyType != "" {
		d.SurveyType = strings.ToLower(strings.TrimSpace(d.SurveyType))
		if err := oneOf("survey_type", d.SurveyType, surveyTypes); err != nil {
			return err
		}
	}
	if d.PreferredDate != "" {
		t, err := dateparse.ParseAny(strings.TrimSpace(d.PreferredDate))
		if err != nil {
			return apperr.Newf(apperr.CodeInvalidInput, "preferred_date %q is not a recognised date", d.PreferredDate)
		}
		d.PreferredDate = t.Format("2006-01-02")
	}
	return nil
}

func (d *ConsultationDetails) validate() error {
	d.ServiceType = strings.ToLower(strings.TrimSpace(d.ServiceType))
	d.ProjectLocation = strings.TrimSpace(d.ProjectLocation)
	if err := oneOf("service_type", d.ServiceType, consultationServices); err != nil {
		return err
	}
	if d.ProjectLocation == "" {
		return apperr.InvalidInput("project_location is required")
	}
	if d.Budget < 0 {
		return apperr.InvalidInput("budget must be >= 0")
	}
	return nil
}

func (d *CofODetails) validate() error {
	d.PlotNumber = strings.TrimSpace(d.PlotNumber)
	d.Location = strings.TrimSpace(d.Location)
	d.TitleHolder = strings.TrimSpace(d.TitleHolder)
	d.LandUse = strings.ToLower(strings.TrimSpace(d.LandUse))
	switch {
	case d.PlotNumber == "":
		return apperr.InvalidInput("plot_number is required")
	case d.Location == "":
		return apperr.InvalidInput("location is required")
	case d.TitleHolder == "":
		return apperr.InvalidInput("title_holder is required")
	}
	return oneOf("land_use", d.LandUse, landUses)
}

func (d *InvestmentDetails) validate() error {
	amount, err := decimal.NewFromString(strings.TrimSpace(d.Amount))
	if err != nil || !amount.IsPositive() {
		return apperr.InvalidInput("amount must be a positive number")
	}
	d.Amount = amount.StringFixed(2)
	if d.HorizonMonths < 0 {
		return apperr.InvalidInput("horizon_months must be >= 0")
	}
	return nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if a == value {
			return nil
		}
	}
	return apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
}
