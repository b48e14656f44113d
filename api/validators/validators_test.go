package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
)

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required"`
}

func TestDecodeJSONBodyHappyPath(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(`{"email":"jo@example.com","password":"longenough","fullName":"Jo"}`))

	var body registerBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "jo@example.com" || body.FullName != "Jo" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestDecodeJSONBodyMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(`{"email":`))

	var body registerBody
	err := DecodeJSONBody(req, &body)
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(`{"email":"jo@example.com","password":"longenough","fullName":"Jo","role":"admin"}`))

	var body registerBody
	if err := DecodeJSONBody(req, &body); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecodeJSONBodyFieldMessagesUseJSONNames(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(`{"email":"not-an-email","password":"short","fullName":""}`))

	var body registerBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["email"] != "must be a valid email" {
		t.Fatalf("email detail: %q", details["email"])
	}
	if details["password"] != "must be at least 8" {
		t.Fatalf("password detail: %q", details["password"])
	}
	if details["fullName"] != "is required" {
		t.Fatalf("fullName detail: %q", details["fullName"])
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/products?limit=25", nil)
	value, err := ParseQueryInt(req, "limit", 20, 1, 100)
	if err != nil || value != 25 {
		t.Fatalf("got %d, %v", value, err)
	}

	req = httptest.NewRequest("GET", "/products", nil)
	value, err = ParseQueryInt(req, "limit", 20, 1, 100)
	if err != nil || value != 20 {
		t.Fatalf("default: got %d, %v", value, err)
	}

	req = httptest.NewRequest("GET", "/products?limit=abc", nil)
	if _, err = ParseQueryInt(req, "limit", 20, 1, 100); err == nil {
		t.Fatal("expected error for non-numeric value")
	}

	req = httptest.NewRequest("GET", "/products?limit=500", nil)
	if _, err = ParseQueryInt(req, "limit", 20, 1, 100); err == nil {
		t.Fatal("expected error for out-of-range value")
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/products?in_stock=true", nil)
	value, err := ParseQueryBool(req, "in_stock")
	if err != nil || value == nil || !*value {
		t.Fatalf("got %v, %v", value, err)
	}

	req = httptest.NewRequest("GET", "/products", nil)
	value, err = ParseQueryBool(req, "in_stock")
	if err != nil || value != nil {
		t.Fatalf("absent: got %v, %v", value, err)
	}

	req = httptest.NewRequest("GET", "/products?in_stock=maybe", nil)
	if _, err = ParseQueryBool(req, "in_stock"); err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}

func TestParseQueryDecimal(t *testing.T) {
	req := httptest.NewRequest("GET", "/products?min_price=19.99", nil)
	value, err := ParseQueryDecimal(req, "min_price")
	if err != nil || value == nil || value.String() != "19.99" {
		t.Fatalf("got %v, %v", value, err)
	}

	req = httptest.NewRequest("GET", "/products?min_price=-3", nil)
	if _, err = ParseQueryDecimal(req, "min_price"); err == nil {
		t.Fatal("expected error for negative value")
	}

	req = httptest.NewRequest("GET", "/products?min_price=cheap", nil)
	if _, err = ParseQueryDecimal(req, "min_price"); err == nil {
		t.Fatal("expected error for non-decimal value")
	}
}

func TestParsePathUUID(t *testing.T) {
	want := uuid.New()
	got, err := ParsePathUUID(" "+want.String()+" ", "productId")
	if err != nil || got != want {
		t.Fatalf("got %v, %v", got, err)
	}

	if _, err = ParsePathUUID("not-a-uuid", "productId"); err == nil {
		t.Fatal("expected error for malformed UUID")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 0); got != "hello" {
		t.Fatalf("trim: %q", got)
	}
	if got := SanitizeString("abcdef", 4); got != "abcd" {
		t.Fatalf("truncate: %q", got)
	}
	if got := SanitizeString("ok", 10); got != "ok" {
		t.Fatalf("under limit: %q", got)
	}
}
