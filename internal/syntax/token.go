// Package syntax checks SystemVerilog text against the synthesizable subset
// produced by the code generator: modules, interfaces with modports, data
// declarations, continuous assigns, always blocks, instantiations and the
// full operator expression grammar. It knows nothing about how the text was
// produced and keeps no state between calls.
package syntax

import "fmt"

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Illegal
	Ident
	SysIdent
	Number
	String
	Keyword
	Punct
)

var kindNames = [...]string{
	EOF:      "end of input",
	Illegal:  "illegal character",
	Ident:    "identifier",
	SysIdent: "system identifier",
	Number:   "number",
	String:   "string",
	Keyword:  "keyword",
	Punct:    "punctuation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a lexical unit with its 1-based position.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// IEEE 1800-2017 reserved words.
var keywords = map[string]bool{}

func init() {
	for _, k := range []string{
		"accept_on", "alias", "always", "always_comb", "always_ff", "always_latch", "and",
		"assert", "assign", "assume", "automatic", "before", "begin", "bind", "bins",
		"binsof", "bit", "break", "buf", "bufif0", "bufif1", "byte", "case", "casex",
		"casez", "cell", "chandle", "checker", "class", "clocking", "cmos", "config",
		"const", "constraint", "context", "continue", "cover", "covergroup", "coverpoint",
		"cross", "deassign", "default", "defparam", "design", "disable", "dist", "do",
		"edge", "else", "end", "endcase", "endchecker", "endclass", "endclocking",
		"endconfig", "endfunction", "endgenerate", "endgroup", "endinterface", "endmodule",
		"endpackage", "endprimitive", "endprogram", "endproperty", "endspecify",
		"endsequence", "endtable", "endtask", "enum", "event", "eventually", "expect",
		"export", "extends", "extern", "final", "first_match", "for", "force", "foreach",
		"forever", "fork", "forkjoin", "function", "generate", "genvar", "global",
		"highz0", "highz1", "if", "iff", "ifnone", "ignore_bins", "illegal_bins",
		"implements", "implies", "import", "incdir", "include", "initial", "inout",
		"input", "inside", "instance", "int", "integer", "interconnect", "interface",
		"intersect", "join", "join_any", "join_none", "large", "let", "liblist", "library",
		"local", "localparam", "logic", "longint", "macromodule", "matches", "medium",
		"modport", "module", "nand", "negedge", "nettype", "new", "nexttime", "nmos", "nor",
		"noshowcancelled", "not", "notif0", "notif1", "null", "or", "output", "package",
		"packed", "parameter", "pmos", "posedge", "primitive", "priority", "program",
		"property", "protected", "pull0", "pull1", "pulldown", "pullup",
		"pulsestyle_ondetect", "pulsestyle_onevent", "pure", "rand", "randc", "randcase",
		"randsequence", "rcmos", "real", "realtime", "ref", "reg", "reject_on", "release",
		"repeat", "restrict", "return", "rnmos", "rpmos", "rtran", "rtranif0", "rtranif1",
		"s_always", "s_eventually", "s_nexttime", "s_until", "s_until_with", "scalared",
		"sequence", "shortint", "shortreal", "showcancelled", "signed", "small", "soft",
		"solve", "specify", "specparam", "static", "string", "strong", "strong0",
		"strong1", "struct", "super", "supply0", "supply1", "sync_accept_on",
		"sync_reject_on", "table", "tagged", "task", "this", "throughout", "time",
		"timeprecision", "timeunit", "tran", "tranif0", "tranif1", "tri", "tri0", "tri1",
		"triand", "trior", "trireg", "type", "typedef", "union", "unique", "unique0",
		"unsigned", "until", "until_with", "untyped", "use", "uwire", "var", "vectored",
		"virtual", "void", "wait", "wait_order", "wand", "weak", "weak0", "weak1", "while",
		"wildcard", "wire", "with", "within", "wor", "xnor", "xor",
	} {
		keywords[k] = true
	}
}

// IsKeyword reports whether name is a reserved word.
func IsKeyword(name string) bool {
	return keywords[name]
}

// IsIdentifier reports whether name is a legal simple identifier that is not
// reserved.
func IsIdentifier(name string) bool {
	if name == "" || keywords[name] {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && (c >= '0' && c <= '9' || c == '$'):
		default:
			return false
		}
	}
	return true
}

// Punctuation, longest first so the lexer can match greedily.
var puncts = []string{
	"<<<=", ">>>=",
	"<<<", ">>>", "===", "!==", "==?", "!=?", "<<=", ">>=",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "**", "~&", "~|", "~^", "^~",
	"::", "+:", "-:", "++", "--", "+=", "-=", "*=", "/=", "&=", "|=", "^=", "->",
	"(", ")", "[", "]", "{", "}", ";", ":", ",", ".", "=", "+", "-", "*", "/", "%",
	"&", "|", "^", "~", "!", "<", ">", "?", "#", "@", "'",
}
