package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"orderstats/internal/model"
)

// UploadRequest is the raw upload body.
type UploadRequest struct {
	User   TextInput     `json:"user"`
	Orders []OrderRecord `json:"orders"`
}

type OrderRecord struct {
	OrderNumber TextInput    `json:"order_number" validate:"required,max=50"`
	CreatedAt   TextInput    `json:"created_at" validate:"required,isodatetime"`
	TotalAmount DecimalInput `json:"total_amount" validate:"required,decimalstr,precision=12_2"`
	Status      TextInput    `json:"status" validate:"required,max=20"`
	Items       []ItemRecord `json:"items" validate:"required,dive"`
}

type ItemRecord struct {
	SKU      TextInput    `json:"sku" validate:"required,max=50"`
	Name     TextInput    `json:"name" validate:"required,max=255"`
	Quantity IntInput     `json:"quantity" validate:"required,integer,intmin=0,intmax=2147483647"`
	Price    DecimalInput `json:"price" validate:"required,decimalstr,precision=10_2"`
}

var jsonNull = []byte("null")

// literal returns the text of a JSON scalar: strings are unquoted, anything
// else is kept as written. ok is false for null.
func literal(b []byte) (text string, quoted bool, ok bool, err error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, jsonNull) {
		return "", false, false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, false, err
		}
		return s, true, true, nil
	}
	return string(b), false, true, nil
}

// TextInput is a string field that also accepts JSON numbers. Booleans,
// objects and arrays decode with Valid unset and are reported per field.
type TextInput struct {
	Value string
	Set   bool
	Valid bool
}

func NewTextInput(s string) TextInput {
	return TextInput{Value: s, Set: true, Valid: true}
}

func (t *TextInput) UnmarshalJSON(b []byte) error {
	text, quoted, ok, err := literal(b)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		*t = TextInput{}
	case quoted || isJSONNumber(text):
		*t = TextInput{Value: text, Set: true, Valid: true}
	default:
		*t = TextInput{Value: text, Set: true}
	}
	return nil
}

func (t TextInput) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return jsonNull, nil
	}
	return json.Marshal(t.Value)
}

func isJSONNumber(s string) bool {
	return s != "" && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9'))
}

// DecimalInput keeps the literal of a JSON string or number so that a
// malformed amount becomes a field error instead of a decoding failure.
type DecimalInput struct {
	Raw string
	Set bool
}

func NewDecimalInput(s string) DecimalInput {
	return DecimalInput{Raw: s, Set: true}
}

func (d *DecimalInput) UnmarshalJSON(b []byte) error {
	text, _, ok, err := literal(b)
	if err != nil {
		return err
	}
	if !ok {
		*d = DecimalInput{}
		return nil
	}
	*d = DecimalInput{Raw: strings.TrimSpace(text), Set: true}
	return nil
}

func (d DecimalInput) MarshalJSON() ([]byte, error) {
	if !d.Set {
		return jsonNull, nil
	}
	return json.Marshal(d.Raw)
}

// IntInput keeps the literal of a JSON number or numeric string; "2", 2 and
// 2.0 are the same quantity, 2.5 and "two" are field errors.
type IntInput struct {
	Raw string
	Set bool
}

func NewIntInput(n int) IntInput {
	return IntInput{Raw: strconv.Itoa(n), Set: true}
}

func (i *IntInput) UnmarshalJSON(b []byte) error {
	text, _, ok, err := literal(b)
	if err != nil {
		return err
	}
	if !ok {
		*i = IntInput{}
		return nil
	}
	*i = IntInput{Raw: strings.TrimSpace(text), Set: true}
	return nil
}

func (i IntInput) MarshalJSON() ([]byte, error) {
	if !i.Set {
		return jsonNull, nil
	}
	return json.Marshal(i.Raw)
}

var integerPattern = regexp.MustCompile(`^[-+]?[0-9]+(\.0*)?$`)

// parseInteger reads an integral literal without overflow.
func parseInteger(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !integerPattern.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Batch is a validated, normalized upload.
type Batch struct {
	Username string
	Orders   []BatchOrder
}

type BatchOrder struct {
	Number      string
	CreatedAt   time.Time
	TotalAmount decimal.Decimal
	Status      string
	Items       []BatchItem
}

type BatchItem struct {
	SKU      string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

func (b Batch) OrderNumbers() []string {
	numbers := make([]string, len(b.Orders))
	for i, o := range b.Orders {
		numbers[i] = o.Number
	}
	return numbers
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.DateOnly,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseDateTime accepts ISO 8601 date-times and bare dates (midnight);
// values without an offset are read in loc.
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		switch in := field.Interface().(type) {
		case TextInput:
			if in.Set {
				return in.Value
			}
		case DecimalInput:
			if in.Set {
				return in.Raw
			}
		case IntInput:
			if in.Set {
				return in.Raw
			}
		}
		return nil
	}, TextInput{}, DecimalInput{}, IntInput{})

	mustRegister(v, "isodatetime", func(fl validator.FieldLevel) bool {
		_, err := parseDateTime(fl.Field().String(), time.UTC)
		return err == nil
	})
	mustRegister(v, "decimalstr", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "precision", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			// reported by decimalstr
			return true
		}
		maxDigits, places := precisionParam(fl.Param())
		return fitsPrecision(d, maxDigits, places)
	})
	mustRegister(v, "integer", func(fl validator.FieldLevel) bool {
		_, ok := parseInteger(fl.Field().String())
		return ok
	})
	mustRegister(v, "intmin", func(fl validator.FieldLevel) bool {
		n, ok := parseInteger(fl.Field().String())
		return !ok || n.GreaterThanOrEqual(decimal.RequireFromString(fl.Param()))
	})
	mustRegister(v, "intmax", func(fl validator.FieldLevel) bool {
		n, ok := parseInteger(fl.Field().String())
		return !ok || n.LessThanOrEqual(decimal.RequireFromString(fl.Param()))
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// precisionParam parses "12_2" into (12, 2).
func precisionParam(p string) (int, int) {
	digits, places, _ := strings.Cut(p, "_")
	d, _ := strconv.Atoi(digits)
	s, _ := strconv.Atoi(places)
	return d, s
}

// fitsPrecision reports whether d fits NUMERIC(maxDigits, places) without rounding.
func fitsPrecision(d decimal.Decimal, maxDigits, places int) bool {
	coefDigits := len(d.Coefficient().String())
	if d.Sign() < 0 {
		coefDigits--
	}
	exp := int(d.Exponent())

	var total, whole, decimals int
	switch {
	case exp >= 0:
		total = coefDigits + exp
		whole = total
	case coefDigits > -exp:
		total = coefDigits
		decimals = -exp
		whole = total - decimals
	default:
		total = -exp
		decimals = total
	}

	return total <= maxDigits && decimals <= places && whole <= maxDigits-places
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "integer":
		return "a valid integer is required"
	case "intmin":
		return fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
	case "intmax":
		return fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param())
	case "isodatetime":
		return "datetime has wrong format, use ISO 8601"
	case "decimalstr":
		return "a valid number is required"
	case "precision":
		digits, places := precisionParam(fe.Param())
		return fmt.Sprintf("ensure there are no more than %d digits in total and no more than %d decimal places", digits, places)
	default:
		return fmt.Sprintf("failed on the %q rule", fe.Tag())
	}
}

// ValidateBatch checks a submission and normalizes it. It has no side effects;
// a single invalid field rejects the whole batch.
func ValidateBatch(req UploadRequest, loc *time.Location) (Batch, error) {
	if loc == nil {
		loc = time.UTC
	}
	verr := &ValidationError{}

	username := strings.TrimSpace(req.User.Value)
	switch {
	case req.User.Set && !req.User.Valid:
		verr.add("user", msgNotAString)
	case username == "":
		verr.add("user", "username must not be empty")
	case len([]rune(username)) > model.MaxUsernameLength:
		verr.add("user", fmt.Sprintf("ensure this field has no more than %d characters", model.MaxUsernameLength))
	}

	if len(req.Orders) == 0 {
		verr.add("orders", "order list must not be empty")
	}

	seen := make(map[string]struct{}, len(req.Orders))
	duplicate := false
	for _, rec := range req.Orders {
		if _, ok := seen[rec.OrderNumber.Value]; ok {
			duplicate = true
		}
		seen[rec.OrderNumber.Value] = struct{}{}
	}
	if duplicate {
		verr.add("orders", "order numbers must be unique within a batch")
	}

	for i := range req.Orders {
		prefix := fmt.Sprintf("orders[%d].", i)
		mistyped := req.Orders[i].mistypedFields()
		for field := range mistyped {
			verr.add(prefix+field, msgNotAString)
		}

		if err := validate.Struct(&req.Orders[i]); err != nil {
			fieldErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return Batch{}, fmt.Errorf("validate order %d: %w", i, err)
			}
			for _, fe := range fieldErrs {
				field := trimNamespace(fe.Namespace())
				if _, ok := mistyped[field]; ok {
					continue
				}
				verr.add(prefix+field, fieldMessage(fe))
			}
		}
	}

	if !verr.empty() {
		return Batch{}, verr
	}

	batch := Batch{Username: username, Orders: make([]BatchOrder, 0, len(req.Orders))}
	for _, rec := range req.Orders {
		// Already validated above; parse errors cannot occur here.
		createdAt, _ := parseDateTime(rec.CreatedAt.Value, loc)
		order := BatchOrder{
			Number:      rec.OrderNumber.Value,
			CreatedAt:   createdAt,
			TotalAmount: decimal.RequireFromString(rec.TotalAmount.Raw),
			Status:      rec.Status.Value,
			Items:       make([]BatchItem, 0, len(rec.Items)),
		}
		for _, it := range rec.Items {
			quantity, _ := parseInteger(it.Quantity.Raw)
			order.Items = append(order.Items, BatchItem{
				SKU:      it.SKU.Value,
				Name:     it.Name.Value,
				Quantity: int(quantity.IntPart()),
				Price:    decimal.RequireFromString(it.Price.Raw),
			})
		}
		batch.Orders = append(batch.Orders, order)
	}

	return batch, nil
}

const msgNotAString = "not a valid string"

// mistypedFields lists the text fields, relative to the record, that were
// given a boolean, object or array.
func (r *OrderRecord) mistypedFields() map[string]struct{} {
	out := map[string]struct{}{}
	check := func(field string, in TextInput) {
		if in.Set && !in.Valid {
			out[field] = struct{}{}
		}
	}
	check("order_number", r.OrderNumber)
	check("created_at", r.CreatedAt)
	check("status", r.Status)
	for j, it := range r.Items {
		check(fmt.Sprintf("items[%d].sku", j), it.SKU)
		check(fmt.Sprintf("items[%d].name", j), it.Name)
	}
	return out
}

// trimNamespace drops the root struct name from "OrderRecord.items[0].sku".
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
