package languages

import "unicode"

// 常用字面量规则。
var (
	doubleQuoted = quoteRule{open: `"`, close: `"`, backslash: true}
	singleQuoted = quoteRule{open: `'`, close: `'`, backslash: true}
	backtick     = quoteRule{open: "`", close: "`", backslash: true}
)

// cStyle 返回 // 与 /* */ 注释的词法描述。
func cStyle(quotes ...quoteRule) Syntax {
	return Syntax{
		LineComments: []string{"//"},
		BlockStart:   "/*",
		BlockEnd:     "*/",
		quotes:       quotes,
	}
}

// builtinAnalyzers 返回全部内置语言。
// 新语言只需要在这里追加一项 Syntax 描述。
func builtinAnalyzers() []Analyzer {
	rust := cStyle(
		quoteRule{open: `r##"`, close: `"##`, guard: rustRawStringStart},
		quoteRule{open: `r#"`, close: `"#`, guard: rustRawStringStart},
		quoteRule{open: `r"`, close: `"`, guard: rustRawStringStart},
		doubleQuoted,
		quoteRule{open: `'`, close: `'`, backslash: true, guard: rustLooksLikeCharLiteral},
	)
	rust.Nested = true

	return []Analyzer{
		&syntaxAnalyzer{
			name:       "Go",
			extensions: []string{".go"},
			// Go 原始字符串仅由反引号闭合，不处理转义。
			syntax: cStyle(doubleQuoted, singleQuoted, quoteRule{open: "`", close: "`"}),
		},
		&syntaxAnalyzer{
			name:       "JavaScript",
			extensions: []string{".js", ".mjs", ".cjs", ".jsx"},
			syntax:     cStyle(doubleQuoted, singleQuoted, backtick),
		},
		&syntaxAnalyzer{
			name:       "TypeScript",
			extensions: []string{".ts", ".tsx"},
			syntax:     cStyle(doubleQuoted, singleQuoted, backtick),
		},
		&syntaxAnalyzer{
			name:       "Java",
			extensions: []string{".java"},
			syntax:     cStyle(quoteRule{open: `"""`, close: `"""`, backslash: true}, doubleQuoted, singleQuoted),
		},
		&syntaxAnalyzer{
			name:       "C/C++",
			extensions: []string{".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp", ".hxx"},
			syntax:     cStyle(doubleQuoted, singleQuoted),
		},
		&syntaxAnalyzer{
			name:       "Rust",
			extensions: []string{".rs"},
			syntax:     rust,
		},
		&syntaxAnalyzer{
			name:       "CSS",
			extensions: []string{".css"},
			syntax: Syntax{
				BlockStart: "/*",
				BlockEnd:   "*/",
				quotes:     []quoteRule{doubleQuoted, singleQuoted},
			},
		},
		&syntaxAnalyzer{
			name:       "Python",
			extensions: []string{".py"},
			// 三引号字符串（包括 docstring）算作 code。
			syntax: Syntax{
				LineComments: []string{"#"},
				quotes: []quoteRule{
					{open: `'''`, close: `'''`, backslash: true},
					{open: `"""`, close: `"""`, backslash: true},
					singleQuoted,
					doubleQuoted,
				},
			},
		},
		&syntaxAnalyzer{
			name:       "Ruby",
			extensions: []string{".rb"},
			syntax: Syntax{
				LineComments:   []string{"#"},
				DirectiveStart: "=begin",
				DirectiveEnd:   "=end",
				quotes:         []quoteRule{singleQuoted, doubleQuoted},
			},
		},
		&syntaxAnalyzer{
			name:       "Shell",
			extensions: []string{".sh", ".bash", ".zsh"},
			syntax: Syntax{
				LineComments: []string{"#"},
				quotes:       []quoteRule{doubleQuoted, {open: `'`, close: `'`}},
			},
		},
		&syntaxAnalyzer{
			name:       "YAML",
			extensions: []string{".yml", ".yaml"},
			syntax: Syntax{
				LineComments: []string{"#"},
				quotes:       []quoteRule{doubleQuoted, {open: `'`, close: `'`, doubled: true}},
			},
		},
		&syntaxAnalyzer{
			name:       "TOML",
			extensions: []string{".toml"},
			syntax: Syntax{
				LineComments: []string{"#"},
				quotes: []quoteRule{
					{open: `"""`, close: `"""`, backslash: true},
					{open: `'''`, close: `'''`},
					doubleQuoted,
					{open: `'`, close: `'`},
				},
			},
		},
		&syntaxAnalyzer{
			name:       "SQL",
			extensions: []string{".sql"},
			// SQL 字符串用重复引号转义，块注释允许嵌套。
			syntax: Syntax{
				LineComments: []string{"--"},
				BlockStart:   "/*",
				BlockEnd:     "*/",
				Nested:       true,
				quotes: []quoteRule{
					{open: `'`, close: `'`, doubled: true},
					{open: `"`, close: `"`, doubled: true},
				},
			},
		},
		&syntaxAnalyzer{
			name:       "HTML",
			extensions: []string{".html", ".htm"},
			syntax: Syntax{
				BlockStart: "<!--",
				BlockEnd:   "-->",
			},
		},
	}
}

// rustRawStringStart 要求 r 前面不是标识符字符（允许 br 前缀）。
func rustRawStringStart(runes []rune, idx int) bool {
	if idx == 0 || !isIdentRune(runes[idx-1]) {
		return true
	}
	return runes[idx-1] == 'b' && (idx == 1 || !isIdentRune(runes[idx-2]))
}

// rustLooksLikeCharLiteral 用于区分字符字面量和生命周期标识（如 'a）。
func rustLooksLikeCharLiteral(runes []rune, idx int) bool {
	if idx+2 >= len(runes) {
		return false
	}

	// 普通字符：'a'
	if runes[idx+1] != '\\' && runes[idx+2] == '\'' {
		return true
	}

	// 转义字符：'\n'
	return runes[idx+1] == '\\' && idx+3 < len(runes) && runes[idx+3] == '\''
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
