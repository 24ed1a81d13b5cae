package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

var errNotFinite = errors.New("value must be a finite number")

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// queryList accepts both ?product=a&product=b and ?product=a,b.
func queryList(c *gin.Context, param string) []string {
	raw := c.QueryArray(param)
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// queryDate returns the zero time when param is absent.
func queryDate(c *gin.Context, param string) (time.Time, error) {
	value := strings.TrimSpace(c.Query(param))
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}

func queryFloat(c *gin.Context, param string) (*float64, error) {
	value := strings.TrimSpace(c.Query(param))
	if value == "" {
		return nil, nil
	}
	f, err := parseFinite(value)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// parseFinite rejects Inf and NaN, which ParseFloat accepts and JSON cannot encode.
func parseFinite(value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotFinite
	}
	return f, nil
}
