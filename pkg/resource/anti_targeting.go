// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resource

import (
	"encoding/json"
	"net/url"
	"strings"
)

const antiTargetingVersion = 1

// AntiTargetingInfo maps a creative set to sites it must not follow.
type AntiTargetingInfo struct {
	Version int                 `json:"version"`
	Sites   map[string][]string `json:"sites"`
}

// ParseAntiTargeting parses an anti-targeting document.
func ParseAntiTargeting(data []byte) (AntiTargetingInfo, error) {
	var info AntiTargetingInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return AntiTargetingInfo{}, &ParseError{Resource: "anti-targeting", Reason: "malformed json", Err: err}
	}
	if info.Version != antiTargetingVersion {
		return AntiTargetingInfo{}, &ParseError{Resource: "anti-targeting", Reason: "unsupported version"}
	}
	if info.Sites == nil {
		return AntiTargetingInfo{}, &ParseError{Resource: "anti-targeting", Reason: "missing sites"}
	}
	return info, nil
}

// IsVisited reports whether any site of creativeSetID appears in history.
// Sites match on host, ignoring scheme, path and a leading "www.".
func (a AntiTargetingInfo) IsVisited(creativeSetID string, history []string) bool {
	sites := a.Sites[creativeSetID]
	if len(sites) == 0 || len(history) == 0 {
		return false
	}

	visited := make(map[string]struct{}, len(history))
	for _, h := range history {
		visited[hostOf(h)] = struct{}{}
	}
	for _, site := range sites {
		if _, ok := visited[hostOf(site)]; ok {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
