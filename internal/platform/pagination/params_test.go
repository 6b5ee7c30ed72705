package pagination

import (
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize || params.PageToken != "" || params.Filters != nil {
		t.Fatalf("unexpected defaults %+v", params)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	cases := map[string]int{"": 25, "30": 30, "400": 40}
	for raw, want := range cases {
		params, err := Parse(url.Values{"pageSize": {raw}}, opts)
		if err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
		if params.PageSize != want {
			t.Fatalf("%q: expected %d got %d", raw, want, params.PageSize)
		}
	}
	for _, raw := range []string{"abc", "0", "-3"} {
		if _, err := Parse(url.Values{"pageSize": {raw}}, opts); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("%q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParseFilters(t *testing.T) {
	opts := Options{Filters: map[string][]string{
		"status":   {"pending", "shipped", "cancelled"},
		"driverId": nil,
	}}
	req := httptest.NewRequest("GET", "/orders?status=pending,shipped&status=shipped&driverId=drv-1", nil)
	params, err := FromRequest(req, opts)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if !reflect.DeepEqual(params.Filter("status"), []string{"pending", "shipped"}) {
		t.Fatalf("unexpected status filter %v", params.Filter("status"))
	}
	if !reflect.DeepEqual(params.Filter("driverId"), []string{"drv-1"}) {
		t.Fatalf("unexpected driver filter %v", params.Filter("driverId"))
	}
	if params.Filter("country") != nil {
		t.Fatalf("unknown filters must be ignored")
	}

	if _, err := Parse(url.Values{"status": {"lost"}}, opts); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestTimeCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 123, time.FixedZone("AST", 3*3600))
	token, err := EncodeTimeCursor(at, "ord_9")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	params, err := Parse(url.Values{"pageToken": {token}}, Options{})
	if err != nil || params.PageToken != token {
		t.Fatalf("expected token accepted, got %+v %v", params, err)
	}
	gotAt, gotID, err := DecodeTimeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !gotAt.Equal(at) || gotID != "ord_9" {
		t.Fatalf("unexpected cursor %s %s", gotAt, gotID)
	}
}

func TestInvalidTokens(t *testing.T) {
	if _, err := Parse(url.Values{"pageToken": {"%%%"}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	noID := base64.RawURLEncoding.EncodeToString([]byte(`{"at":"2025-06-01T09:30:00Z"}`))
	if _, _, err := DecodeTimeCursor(noID); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected cursor without id rejected, got %v", err)
	}
	if _, err := EncodeTimeCursor(time.Now(), ""); err == nil {
		t.Fatal("expected error encoding cursor without id")
	}
	if at, id, err := DecodeTimeCursor("  "); err != nil || !at.IsZero() || id != "" {
		t.Fatalf("expected blank token to mean first page, got %s %q %v", at, id, err)
	}
}
