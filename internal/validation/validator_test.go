// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

type nested struct {
	Rate float64 `koanf:"learning_rate" validate:"gt=0"`
}

type testRequest struct {
	Title  string  `json:"title" validate:"required,title"`
	Weight float64 `json:"weight" validate:"gte=0"`
	Noise  string  `json:"noise" validate:"omitempty,oneof=gaussian laplace"`
	TopN   int     `json:"top_n" validate:"min=0,max=100"`
	Inner  nested  `json:"training"`
}

func validRequest() testRequest {
	return testRequest{Title: "Dark", Weight: 1, Noise: "laplace", TopN: 6, Inner: nested{Rate: 0.01}}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(r *testRequest)
		wantField string
		wantTag   string
	}{
		{name: "valid", mutate: func(r *testRequest) {}},
		{name: "missing title", mutate: func(r *testRequest) { r.Title = "" }, wantField: "title", wantTag: "required"},
		{name: "zero-width title", mutate: func(r *testRequest) { r.Title = " \u200b " }, wantField: "title", wantTag: "title"},
		{name: "negative weight", mutate: func(r *testRequest) { r.Weight = -1 }, wantField: "weight", wantTag: "gte"},
		{name: "unknown noise", mutate: func(r *testRequest) { r.Noise = "uniform" }, wantField: "noise", wantTag: "oneof"},
		{name: "top_n too large", mutate: func(r *testRequest) { r.TopN = 101 }, wantField: "top_n", wantTag: "max"},
		{name: "nested koanf name", mutate: func(r *testRequest) { r.Inner.Rate = 0 }, wantField: "training.learning_rate", wantTag: "gt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := validRequest()
			tt.mutate(&req)
			verr := ValidateStruct(&req)

			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("len(Errors()) = %d, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("error = %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&testRequest{Title: "x", Inner: nested{Rate: 1}, Weight: -2})
	apiErr := single.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Message != "weight must be greater than or equal to 0" {
		t.Errorf("Message = %q", apiErr.Message)
	}

	multi := ValidateStruct(&testRequest{Weight: -1, TopN: -1}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) < 3 {
		t.Errorf("Details = %v, want at least 3 fields", multi.Details)
	}
	if !strings.Contains(multi.Message, "title is required") {
		t.Errorf("Message = %q", multi.Message)
	}

	empty := (&RequestValidationError{}).ToAPIError()
	if empty.Message != "Validation failed" {
		t.Errorf("empty Message = %q", empty.Message)
	}
}
