package repository

import "strings"

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func marks(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
