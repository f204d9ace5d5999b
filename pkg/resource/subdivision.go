// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resource

import (
	"encoding/json"
	"slices"
	"strings"
)

// Countries for which region level targeting is offered.
var subdivisionCountries = []string{"US", "CA"}

// SubdivisionInfo is the user's country and region as reported by the ads
// server geo endpoint.
type SubdivisionInfo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
}

// ParseSubdivision parses a geo response.
func ParseSubdivision(data []byte) (SubdivisionInfo, error) {
	var info SubdivisionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return SubdivisionInfo{}, &ParseError{Resource: "subdivision", Reason: "malformed json", Err: err}
	}
	info.Country = strings.ToUpper(strings.TrimSpace(info.Country))
	info.Region = strings.ToUpper(strings.TrimSpace(info.Region))
	if info.Country == "" {
		return SubdivisionInfo{}, &ParseError{Resource: "subdivision", Reason: "missing country"}
	}
	return info, nil
}

// Code returns "COUNTRY-REGION", or "" when region targeting is not
// available for the country.
func (s SubdivisionInfo) Code() string {
	if s.Region == "" || !slices.Contains(subdivisionCountries, s.Country) {
		return ""
	}
	return s.Country + "-" + s.Region
}
