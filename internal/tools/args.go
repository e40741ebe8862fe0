package tools

// Argument accessors for the loosely typed maps the model sends.
// Missing or mistyped values come back as zero values; tools validate
// required fields themselves.

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) (value, ok bool) {
	value, ok = args[key].(bool)
	return value, ok
}

func intArg(args map[string]any, key string) int {
	// JSON numbers decode as float64.
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return 0
}
