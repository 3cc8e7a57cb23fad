// Package docstring parses Google-style structured docstrings into an
// ordered list of typed sections.
//
// A docstring consists of a free-text description followed by named,
// indentation-delimited sections:
//
//	Handle a POST request for a session method.
//
//	Args:
//	    session_key: Key identifying the session
//	    data: Payload for the helper
//
//	Responses:
//	    Success: ResponseSchema(200, "Initiated Task", MimeTypes.json, "Task")
//
// A line is treated as a section header only when its stripped text matches
// a known section name (case-insensitive), ends with a colon, and the next
// non-blank line is indented strictly deeper. Unrecognized colon-terminated
// lines (such as "Note:") stay inside the surrounding block.
//
// Parsing never fails: malformed indentation degrades to description text
// and missing sections are simply absent.
package docstring
