package domain

import "strings"

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityFixed    Severity = "fixed"
)

// ClassifySeverity 根据深度和状态推导严重程度。
// 状态为 fixed（不区分大小写）时总是返回 fixed；
// 没有深度时返回 false，由调用方决定默认值或保留原值。
func ClassifySeverity(depth *float64, status string) (Severity, bool) {
	if strings.EqualFold(status, string(StatusFixed)) {
		return SeverityFixed, true
	}
	if depth == nil {
		return "", false
	}

	switch d := *depth; {
	case d < 2:
		return SeverityMinor, true
	case d < 4:
		return SeverityModerate, true
	default:
		return SeveritySevere, true
	}
}

// SeverityForCreate 新建坑洞时使用，无法推导时默认为 minor
func SeverityForCreate(depth *float64, status string) Severity {
	if severity, ok := ClassifySeverity(depth, status); ok {
		return severity
	}
	return SeverityMinor
}
