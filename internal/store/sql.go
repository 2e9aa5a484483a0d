package store

import "strconv"

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func joinClauses(clauses []string, sep string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += sep
		}
		out += c
	}
	return out
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + joinClauses(clauses, " AND ")
}
