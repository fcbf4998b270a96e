package languages

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"

	"repoloc/internal/model"
)

// quoteRule 描述一种字符串/字符字面量。
type quoteRule struct {
	open  string
	close string
	// backslash 为 true 时反斜杠会吞掉下一个字符。
	backslash bool
	// doubled 为 true 时连续两个结束符表示转义（SQL 中两个连续单引号）。
	doubled bool
	// guard 非空时只有返回 true 才进入字面量，用于区分 Rust 生命周期 'a。
	guard func(runes []rune, idx int) bool
}

// Syntax 是驱动通用 FSM 的语言词法描述。
type Syntax struct {
	// LineComments 是行注释起始符，命中后本行剩余部分都是注释。
	LineComments []string
	// BlockStart/BlockEnd 是块注释界定符，Nested 表示允许嵌套。
	BlockStart string
	BlockEnd   string
	Nested     bool
	// DirectiveStart/DirectiveEnd 是独占一行的块注释指令（Ruby 的 =begin/=end）。
	DirectiveStart string
	DirectiveEnd   string
	// quotes 按顺序匹配，较长的界定符必须排在前面（例如 """ 在 " 前）。
	quotes []quoteRule
}

// syntaxAnalyzer 是基于 Syntax 的 Analyzer 实现。
type syntaxAnalyzer struct {
	name       string
	extensions []string
	syntax     Syntax
}

// Name 返回语言名称。
func (a *syntaxAnalyzer) Name() string {
	return a.name
}

// Extensions 返回该语言的后缀。
func (a *syntaxAnalyzer) Extensions() []string {
	return a.extensions
}

// Analyze 为每个输入流创建独立状态机，因此同一个 analyzer 可被多个 worker 并发使用。
func (a *syntaxAnalyzer) Analyze(reader io.Reader) (model.LineMetrics, error) {
	engine := &fsmEngine{syntax: &a.syntax, quote: -1}
	return engine.analyze(reader)
}

// fsmEngine 保存跨行延续的状态。
type fsmEngine struct {
	syntax      *Syntax
	blockDepth  int
	inDirective bool
	// quote 是当前所处字面量在 syntax.quotes 中的下标，-1 表示不在字面量中。
	quote int
}

// analyze 采用流式读取逐行解析，避免一次性加载大文件。
func (e *fsmEngine) analyze(reader io.Reader) (model.LineMetrics, error) {
	var metrics model.LineMetrics

	bufferedReader := bufio.NewReader(reader)
	for {
		line, err := bufferedReader.ReadString('\n')
		// EOF 且没有剩余字符时，说明已经没有可处理行。
		if errors.Is(err, io.EOF) && len(line) == 0 {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return metrics, err
		}

		// 去掉 \n 与 Windows 的 \r。
		currentLine := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		hasCode, hasComment := e.processLine(currentLine)
		classifyLine(&metrics, hasCode, hasComment)

		// 最后一行没有换行符，统计后退出。
		if errors.Is(err, io.EOF) {
			break
		}
	}

	return metrics, nil
}

// processLine 扫描单行并更新状态，返回该行是否包含 code/comment。
func (e *fsmEngine) processLine(line string) (bool, bool) {
	syntax := e.syntax

	// 指令式块注释优先级最高，整行按注释处理。
	if e.inDirective {
		if isDirective(line, syntax.DirectiveEnd) {
			e.inDirective = false
		}
		return false, true
	}
	if syntax.DirectiveStart != "" && e.blockDepth == 0 && e.quote < 0 && isDirective(line, syntax.DirectiveStart) {
		e.inDirective = true
		return false, true
	}

	hasCode := e.quote >= 0
	hasComment := e.blockDepth > 0
	runes := []rune(line)

	for idx := 0; idx < len(runes); {
		if e.blockDepth > 0 {
			hasComment = true
			if syntax.Nested && hasPrefixAt(runes, idx, syntax.BlockStart) {
				e.blockDepth++
				idx += len(syntax.BlockStart)
				continue
			}
			if hasPrefixAt(runes, idx, syntax.BlockEnd) {
				e.blockDepth--
				idx += len(syntax.BlockEnd)
				continue
			}
			idx++
			continue
		}

		if e.quote >= 0 {
			hasCode = true
			idx = e.advanceQuote(runes, idx)
			continue
		}

		if unicode.IsSpace(runes[idx]) {
			idx++
			continue
		}

		for _, marker := range syntax.LineComments {
			if hasPrefixAt(runes, idx, marker) {
				return hasCode, true
			}
		}

		if syntax.BlockStart != "" && hasPrefixAt(runes, idx, syntax.BlockStart) {
			hasComment = true
			e.blockDepth = 1
			idx += len(syntax.BlockStart)
			continue
		}

		hasCode = true
		if quote, ok := e.matchQuote(runes, idx); ok {
			e.quote = quote
			idx += len(syntax.quotes[quote].open)
			continue
		}
		idx++
	}

	return hasCode, hasComment
}

// classifyLine 记录一整行的分类结果。
// 同一行可以同时计入 code 与 comment；两者都没有的行是空行。
func classifyLine(metrics *model.LineMetrics, hasCode bool, hasComment bool) {
	metrics.Total++
	if hasCode {
		metrics.Code++
	}
	if hasComment {
		metrics.Comment++
	}
	if !hasCode && !hasComment {
		metrics.Blank++
	}
}

// matchQuote 判断 idx 处是否开始一个字面量。
func (e *fsmEngine) matchQuote(runes []rune, idx int) (int, bool) {
	for i, rule := range e.syntax.quotes {
		if !hasPrefixAt(runes, idx, rule.open) {
			continue
		}
		if rule.guard != nil && !rule.guard(runes, idx) {
			continue
		}
		return i, true
	}
	return -1, false
}

// advanceQuote 在字面量内部推进一步，遇到结束符时退出字面量状态。
func (e *fsmEngine) advanceQuote(runes []rune, idx int) int {
	rule := e.syntax.quotes[e.quote]

	if rule.backslash && runes[idx] == '\\' && idx+1 < len(runes) {
		return idx + 2
	}
	if !hasPrefixAt(runes, idx, rule.close) {
		return idx + 1
	}

	next := idx + len(rule.close)
	if rule.doubled && hasPrefixAt(runes, next, rule.close) {
		return next + len(rule.close)
	}
	e.quote = -1
	return next
}

// hasPrefixAt 判断 runes[idx:] 是否以 marker 开头。marker 必须是 ASCII。
func hasPrefixAt(runes []rune, idx int, marker string) bool {
	if marker == "" || idx+len(marker) > len(runes) {
		return false
	}
	for offset := 0; offset < len(marker); offset++ {
		if runes[idx+offset] != rune(marker[offset]) {
			return false
		}
	}
	return true
}

// isDirective 判断去掉首尾空白后的行是否以指令开头，且指令后是空白或行尾。
func isDirective(line string, directive string) bool {
	trimmed := strings.TrimSpace(line)
	if directive == "" || !strings.HasPrefix(trimmed, directive) {
		return false
	}
	if len(trimmed) == len(directive) {
		return true
	}
	return unicode.IsSpace(rune(trimmed[len(directive)]))
}
