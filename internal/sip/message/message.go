// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package message implements a tolerant RFC3261 SIP message parser and
// generator (spec.md §6 "SIP wire format"). The reference throws on parse
// error; Design Notes call for a discriminated result type instead, so
// Parse never panics and always returns either a Message or a ParseError.
//
// No pack example library models SIP message framing closely enough to
// reuse (DESIGN.md): the parser is hand-written, mirroring the structure
// of original_source/SIP/SIPParse.cpp's line-oriented state machine but
// expressed as ordinary Go string scanning instead of a throwing parser.
package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Method identifies a SIP request method.
type Method string

const (
	INVITE    Method = "INVITE"
	ACK       Method = "ACK"
	CANCEL    Method = "CANCEL"
	BYE       Method = "BYE"
	MESSAGE   Method = "MESSAGE"
	REGISTER  Method = "REGISTER"
	INFO      Method = "INFO"
	REFER     Method = "REFER"
	OPTIONS   Method = "OPTIONS"
	NOTIFY    Method = "NOTIFY"
	SUBSCRIBE Method = "SUBSCRIBE"
)

// ParseError reports why Parse rejected a datagram. It is always
// non-fatal: the caller's contract is to log and drop (spec.md §7).
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "sip: parse error: " + e.Reason }

// Via is one hop of a Via header list.
type Via struct {
	Proto  string // "SIP/2.0/UDP"
	Host   string
	Port   int
	Branch string
	Params map[string]string
}

// NameAddr is a To/From/Contact-style "display-name <sip:user@host>;tag=x" value.
type NameAddr struct {
	DisplayName string
	URI         string
	Params      map[string]string
}

// Tag returns the tag parameter, or "" if absent.
func (n NameAddr) Tag() string { return n.Params["tag"] }

// CSeq is the CSeq header value.
type CSeq struct {
	Seq    uint32
	Method Method
}

// Message is a parsed SIP request or response. Exactly one of Method or
// StatusCode is meaningful, discriminated by IsResponse.
type Message struct {
	IsResponse bool

	// Request line
	Method     Method
	RequestURI string

	// Status line
	StatusCode int
	Reason     string

	Version string // "SIP/2.0"

	Via         []Via
	To          NameAddr
	From        NameAddr
	CallID      string
	CSeq        CSeq
	Contact     []NameAddr
	Route       []string
	RecordRoute []string
	MaxForwards int
	HasMaxFwd   bool
	ContentType string
	Expires     int
	HasExpires  bool

	Authorization    string
	WWWAuthenticate  string
	ReasonHeader     string

	// Headers preserves every header verbatim, in original order, for
	// passthrough of fields the struct above does not model explicitly.
	Headers []HeaderField

	Body []byte
}

// HeaderField is one raw "Name: Value" pair as it appeared on the wire.
type HeaderField struct {
	Name  string
	Value string
}

// Get returns the first raw header value matching name (case-insensitive),
// or "" if absent.
func (m *Message) Get(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// TopVia returns the first Via entry, or the zero Via if none is present.
func (m *Message) TopVia() Via {
	if len(m.Via) == 0 {
		return Via{}
	}
	return m.Via[0]
}

const maxHeaderBytes = 64 * 1024

// Parse decodes a UDP datagram into a SIP Message. It never panics: any
// malformed input yields a non-nil ParseError and a nil Message.
func Parse(data []byte) (*Message, *ParseError) {
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty datagram"}
	}
	if len(data) > maxHeaderBytes {
		return nil, &ParseError{Reason: "datagram too large"}
	}

	raw := string(data)
	headerBlock, body, err := splitHeaderBody(raw)
	if err != nil {
		return nil, err
	}

	lines := unfoldLines(headerBlock)
	if len(lines) == 0 {
		return nil, &ParseError{Reason: "no start line"}
	}

	m := &Message{Body: []byte(body)}
	if err := parseStartLine(lines[0], m); err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue // tolerate stray lines rather than abort the whole parse
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		m.Headers = append(m.Headers, HeaderField{Name: name, Value: value})
		applyKnownHeader(m, name, value)
	}

	if m.CallID == "" {
		return nil, &ParseError{Reason: "missing Call-ID"}
	}
	return m, nil
}

// splitHeaderBody locates the CRLFCRLF (or bare LFLF, tolerated) boundary
// between headers and body.
func splitHeaderBody(raw string) (string, string, *ParseError) {
	if idx := strings.Index(raw, "\r\n\r\n"); idx >= 0 {
		return raw[:idx], raw[idx+4:], nil
	}
	if idx := strings.Index(raw, "\n\n"); idx >= 0 {
		return raw[:idx], raw[idx+2:], nil
	}
	// No body: treat the whole datagram as headers, tolerated.
	return raw, "", nil
}

// unfoldLines splits on CRLF/LF and joins any continuation line (one that
// starts with a space or tab) onto the previous line, per RFC3261 §7.3.1.
func unfoldLines(block string) []string {
	raw := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	var out []string
	for _, l := range raw {
		if len(out) > 0 && len(l) > 0 && (l[0] == ' ' || l[0] == '\t') {
			out[len(out)-1] += " " + strings.TrimSpace(l)
			continue
		}
		out = append(out, l)
	}
	return out
}

func parseStartLine(line string, m *Message) *ParseError {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) != 3 {
		return &ParseError{Reason: "malformed start line"}
	}
	if strings.HasPrefix(fields[0], "SIP/") {
		m.IsResponse = true
		m.Version = fields[0]
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return &ParseError{Reason: "malformed status code"}
		}
		m.StatusCode = code
		m.Reason = fields[2]
		return nil
	}
	m.Method = Method(strings.ToUpper(fields[0]))
	m.RequestURI = fields[1]
	m.Version = fields[2]
	return nil
}

func applyKnownHeader(m *Message, name, value string) {
	switch strings.ToLower(name) {
	case "via", "v":
		if v, ok := parseVia(value); ok {
			m.Via = append(m.Via, v)
		}
	case "to", "t":
		m.To = parseNameAddr(value)
	case "from", "f":
		m.From = parseNameAddr(value)
	case "call-id", "i":
		m.CallID = strings.TrimSpace(value)
	case "cseq":
		if c, ok := parseCSeq(value); ok {
			m.CSeq = c
		}
	case "contact", "m":
		for _, part := range splitCommaTopLevel(value) {
			m.Contact = append(m.Contact, parseNameAddr(part))
		}
	case "route":
		m.Route = append(m.Route, splitCommaTopLevel(value)...)
	case "record-route":
		m.RecordRoute = append(m.RecordRoute, splitCommaTopLevel(value)...)
	case "max-forwards":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			m.MaxForwards = n
			m.HasMaxFwd = true
		}
	case "content-type", "c":
		m.ContentType = strings.TrimSpace(value)
	case "expires":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			m.Expires = n
			m.HasExpires = true
		}
	case "authorization":
		m.Authorization = value
	case "www-authenticate":
		m.WWWAuthenticate = value
	case "reason":
		m.ReasonHeader = value
	}
}

// splitCommaTopLevel splits on commas that are not inside angle brackets,
// since a URI itself may contain commas in query parameters.
func splitCommaTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

func parseVia(v string) (Via, bool) {
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return Via{}, false
	}
	out := Via{Proto: parts[0], Params: map[string]string{}}
	hostAndParams := strings.Split(parts[1], ";")
	hostPort := hostAndParams[0]
	if h, p, ok := strings.Cut(hostPort, ":"); ok {
		out.Host = strings.TrimSpace(h)
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out.Port = n
		}
	} else {
		out.Host = strings.TrimSpace(hostPort)
	}
	for _, p := range hostAndParams[1:] {
		k, val, _ := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		val = strings.TrimSpace(val)
		out.Params[k] = val
		if strings.EqualFold(k, "branch") {
			out.Branch = val
		}
	}
	return out, true
}

func parseNameAddr(v string) NameAddr {
	out := NameAddr{Params: map[string]string{}}
	v = strings.TrimSpace(v)
	if lt := strings.IndexByte(v, '<'); lt >= 0 {
		out.DisplayName = strings.Trim(strings.TrimSpace(v[:lt]), `"`)
		rest := v[lt+1:]
		gt := strings.IndexByte(rest, '>')
		if gt < 0 {
			out.URI = rest
			return out
		}
		out.URI = rest[:gt]
		rest = rest[gt+1:]
		parseParamsInto(out.Params, rest)
		return out
	}
	// bare URI, optionally with params
	uriAndParams := strings.SplitN(v, ";", 2)
	out.URI = strings.TrimSpace(uriAndParams[0])
	if len(uriAndParams) == 2 {
		parseParamsInto(out.Params, ";"+uriAndParams[1])
	}
	return out
}

func parseParamsInto(dst map[string]string, s string) {
	for _, p := range strings.Split(s, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, val, _ := strings.Cut(p, "=")
		dst[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
}

func parseCSeq(v string) (CSeq, bool) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return CSeq{}, false
	}
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return CSeq{}, false
	}
	return CSeq{Seq: uint32(n), Method: Method(strings.ToUpper(fields[1]))}, true
}

// Generate renders m back into wire format. Headers explicitly modeled by
// the struct are emitted first in canonical order, followed by any
// passthrough Headers entries not already covered, followed by the body.
func Generate(m *Message) []byte {
	var b strings.Builder

	if m.IsResponse {
		fmt.Fprintf(&b, "SIP/2.0 %d %s\r\n", m.StatusCode, m.Reason)
	} else {
		fmt.Fprintf(&b, "%s %s SIP/2.0\r\n", m.Method, m.RequestURI)
	}

	for _, v := range m.Via {
		fmt.Fprintf(&b, "Via: %s\r\n", formatVia(v))
	}
	fmt.Fprintf(&b, "To: %s\r\n", formatNameAddr(m.To))
	fmt.Fprintf(&b, "From: %s\r\n", formatNameAddr(m.From))
	fmt.Fprintf(&b, "Call-ID: %s\r\n", m.CallID)
	fmt.Fprintf(&b, "CSeq: %d %s\r\n", m.CSeq.Seq, m.CSeq.Method)
	for _, c := range m.Contact {
		fmt.Fprintf(&b, "Contact: %s\r\n", formatNameAddr(c))
	}
	for _, r := range m.Route {
		fmt.Fprintf(&b, "Route: %s\r\n", r)
	}
	for _, r := range m.RecordRoute {
		fmt.Fprintf(&b, "Record-Route: %s\r\n", r)
	}
	if m.HasMaxFwd {
		fmt.Fprintf(&b, "Max-Forwards: %d\r\n", m.MaxForwards)
	}
	if m.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", m.ContentType)
	}
	if m.HasExpires {
		fmt.Fprintf(&b, "Expires: %d\r\n", m.Expires)
	}
	if m.Authorization != "" {
		fmt.Fprintf(&b, "Authorization:%s\r\n", m.Authorization)
	}
	if m.WWWAuthenticate != "" {
		fmt.Fprintf(&b, "WWW-Authenticate:%s\r\n", m.WWWAuthenticate)
	}
	if m.ReasonHeader != "" {
		fmt.Fprintf(&b, "Reason:%s\r\n", m.ReasonHeader)
	}
	for _, h := range m.Headers {
		if isModeledHeader(h.Name) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(m.Body))
	b.Write(m.Body)
	return []byte(b.String())
}

func isModeledHeader(name string) bool {
	switch strings.ToLower(name) {
	case "via", "v", "to", "t", "from", "f", "call-id", "i", "cseq",
		"contact", "m", "route", "record-route", "max-forwards",
		"content-type", "c", "content-length", "l", "expires",
		"authorization", "www-authenticate", "reason":
		return true
	default:
		return false
	}
}

func formatVia(v Via) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Proto, v.Host)
	if v.Port != 0 {
		fmt.Fprintf(&b, ":%d", v.Port)
	}
	if v.Branch != "" && v.Params["branch"] == "" {
		v.Params = cloneParams(v.Params)
		v.Params["branch"] = v.Branch
	}
	for k, val := range v.Params {
		if val == "" {
			fmt.Fprintf(&b, ";%s", k)
		} else {
			fmt.Fprintf(&b, ";%s=%s", k, val)
		}
	}
	return b.String()
}

func cloneParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func formatNameAddr(n NameAddr) string {
	var b strings.Builder
	if n.DisplayName != "" {
		fmt.Fprintf(&b, "%q ", n.DisplayName)
	}
	fmt.Fprintf(&b, "<%s>", n.URI)
	for k, v := range n.Params {
		if v == "" {
			fmt.Fprintf(&b, ";%s", k)
		} else {
			fmt.Fprintf(&b, ";%s=%s", k, v)
		}
	}
	return b.String()
}
