package core

// StatusClass returns the badge classes for a run or step status.
func StatusClass(status string) string {
	switch status {
	case "passed":
		return "bg-green-50 text-green-700 border border-green-200"
	case "failed":
		return "bg-red-50 text-red-700 border border-red-200"
	case "skipped":
		return "bg-slate-100 text-slate-500 border border-slate-200"
	case "running":
		return "bg-blue-50 text-blue-700 border border-blue-200"
	}
	return "text-slate-600"
}

// RowClass highlights a step row that needs attention.
func RowClass(status, warning string) string {
	switch {
	case status == "failed":
		return "bg-red-50/40"
	case warning != "":
		return "bg-amber-50/40"
	}
	return ""
}
