package txlog

import "strings"

// The EXTRA_JSON column holds a flat JSON object of string and number values
// only; no nesting, no arrays. The codec below is deliberately tiny and
// tolerant: encoding always succeeds, and extraction degrades to best-effort
// partial results on malformed input instead of failing. A general JSON
// decoder would reject exactly the lines replay is required to limp past.

type payloadField struct {
	key     string
	value   string
	numeric bool
}

func encodePayload(fields ...payloadField) string {
	var builder strings.Builder
	builder.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteByte('"')
		builder.WriteString(field.key)
		builder.WriteString(`":`)
		if field.numeric {
			builder.WriteString(field.value)
		} else {
			builder.WriteByte('"')
			builder.WriteString(escapeValue(field.value))
			builder.WriteByte('"')
		}
	}
	builder.WriteByte('}')
	return builder.String()
}

func escapeValue(value string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return replacer.Replace(value)
}

func unescapeValue(value string) string {
	replacer := strings.NewReplacer(
		`\"`, `"`,
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(value)
}

// ExtractPayloadField pulls one value out of a flat payload object. String
// values are unescaped; numeric values are returned as their raw digits.
// A missing key or malformed payload yields "".
func ExtractPayloadField(payload, key string) string {
	if payload == "" {
		return ""
	}

	quoted := `"` + key + `":"`
	start := strings.Index(payload, quoted)
	if start == -1 {
		// Bare value, e.g. "fetchedAt":1700000000.
		bare := `"` + key + `":`
		start = strings.Index(payload, bare)
		if start == -1 {
			return ""
		}
		start += len(bare)
		end := strings.IndexByte(payload[start:], ',')
		if end == -1 {
			end = strings.IndexByte(payload[start:], '}')
		}
		if end == -1 {
			return ""
		}
		return strings.TrimSpace(payload[start : start+end])
	}

	start += len(quoted)
	end := start
	for end < len(payload) {
		if payload[end] == '"' && (end == start || payload[end-1] != '\\') {
			break
		}
		end++
	}
	if end <= start {
		return ""
	}
	return unescapeValue(payload[start:end])
}
