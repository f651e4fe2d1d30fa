// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ParseRetryAfter reads the standard Retry-After header, in either its
// delay-seconds or HTTP-date form.
func ParseRetryAfter(headers http.Header) RetryInfo {
	info := RetryInfo{}

	value := headers.Get("Retry-After")
	if value == "" {
		return info
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		info.RetryAfter = time.Duration(seconds) * time.Second
		return info
	}
	if when, err := http.ParseTime(value); err == nil {
		info.ResetTime = when.Unix()
	}
	return info
}
