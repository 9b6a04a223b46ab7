package batch

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/pkg/pipeline/schema"
)

// InputContract lists the columns read from the input table. Other columns
// are ignored.
var InputContract = schema.Contract{Fields: []schema.Field{
	{Name: "first_name"},
	{Name: "last_name", Nullable: true},
	{Name: "company_website"},
}}

// OutputContract is the exact column set of the output table.
var OutputContract = schema.Contract{Fields: []schema.Field{
	{Name: "first_name", Nullable: true},
	{Name: "last_name", Nullable: true},
	{Name: "company_website", Nullable: true},
	{Name: "email_found", Nullable: true},
	{Name: "status_code", Nullable: true},
	{Name: "validation_result", Nullable: true},
	{Name: "total_credits_used", Nullable: true},
	{Name: "error", Nullable: true},
}}

// Row is one output record: the person plus the flattened discovery result.
// Nil fields are written as empty cells.
type Row struct {
	FirstName        string
	LastName         string
	CompanyWebsite   string
	EmailFound       *string
	StatusCode       *string
	ValidationResult map[string]any
	TotalCreditsUsed *int
	Error            *string
}

// Header returns the output column names.
func Header() []string {
	return OutputContract.Names()
}

// Record encodes the row in Header order. validation_result is compact JSON.
func (r Row) Record() []string {
	validation := ""
	if r.ValidationResult != nil {
		if b, err := json.Marshal(r.ValidationResult); err == nil {
			validation = string(b)
		}
	}
	credits := ""
	if r.TotalCreditsUsed != nil {
		credits = strconv.Itoa(*r.TotalCreditsUsed)
	}
	return []string{
		r.FirstName,
		r.LastName,
		r.CompanyWebsite,
		deref(r.EmailFound),
		deref(r.StatusCode),
		validation,
		credits,
		deref(r.Error),
	}
}

// PeopleFromRecords maps input table records to people. Values are trimmed.
func PeopleFromRecords(recs []map[string]string) []finder.Person {
	out := make([]finder.Person, 0, len(recs))
	for _, rec := range recs {
		out = append(out, normalize(finder.Person{
			FirstName:      rec["first_name"],
			LastName:       rec["last_name"],
			CompanyWebsite: rec["company_website"],
		}))
	}
	return out
}

func normalize(p finder.Person) finder.Person {
	return finder.Person{
		FirstName:      strings.TrimSpace(p.FirstName),
		LastName:       strings.TrimSpace(p.LastName),
		CompanyWebsite: strings.TrimSpace(p.CompanyWebsite),
	}
}

func personRow(p finder.Person) Row {
	return Row{FirstName: p.FirstName, LastName: p.LastName, CompanyWebsite: p.CompanyWebsite}
}

func resultRow(p finder.Person, res finder.Result) Row {
	row := personRow(p)
	credits := res.TotalCreditsUsed
	if res.EmailFound != "" {
		row.EmailFound = ptr(res.EmailFound)
	}
	row.StatusCode = res.StatusCode
	row.ValidationResult = res.ValidationResult
	row.TotalCreditsUsed = &credits
	row.Error = res.Error
	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr[T any](v T) *T {
	return &v
}
