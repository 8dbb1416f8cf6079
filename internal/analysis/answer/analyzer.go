package answer

import (
	"strings"
	"unicode"
)

// Kind 表示候选人话语的分类结果。
type Kind string

const (
	// Substantive 是需要正常评估的回答。
	Substantive Kind = "substantive"
	// Meta 是关于通话本身的话语，例如确认麦克风是否正常。
	Meta Kind = "meta"
	// Vague 是过短或含糊其辞的回答。
	Vague Kind = "vague"
)

// Decision 给出分类结果以及命中的依据。
type Decision struct {
	Kind      Kind
	WordCount int
	Matched   string
}

// minSubstantiveWords 少于该词数的回答视为过短。
const minSubstantiveWords = 6

var metaPhrases = []string{
	"can you hear me",
	"can you hear",
	"is this working",
	"is it working",
	"are you there",
	"are you still there",
	"hello?",
	"testing testing",
	"mic check",
	"is my mic",
	"is my microphone",
	"you're breaking up",
	"you are breaking up",
	"can you repeat",
	"could you repeat",
	"sorry, what was the question",
	"what was the question",
	"听得到吗",
	"能听到吗",
	"听得见吗",
}

var vaguePhrases = []string{
	"i don't know",
	"i dont know",
	"not sure",
	"no idea",
	"i guess",
	"maybe",
	"pass",
	"skip",
	"nothing",
	"um",
	"uh",
	"不知道",
	"不清楚",
}

// Analyze 对转写文本做轻量的规则分类，在调用模型出题之前判断本轮回答的性质。
func Analyze(transcript string) Decision {
	normalized := normalize(transcript)
	words := countWords(normalized)

	if normalized == "" {
		return Decision{Kind: Vague, WordCount: 0}
	}

	for _, phrase := range metaPhrases {
		if strings.Contains(normalized, phrase) && words <= 2*minSubstantiveWords {
			return Decision{Kind: Meta, WordCount: words, Matched: phrase}
		}
	}

	if words < minSubstantiveWords {
		return Decision{Kind: Vague, WordCount: words}
	}

	// 长回答中出现 "maybe" 之类的词很常见，只有整体很短时才算含糊。
	if words < 2*minSubstantiveWords {
		for _, phrase := range vaguePhrases {
			if containsPhrase(normalized, phrase) {
				return Decision{Kind: Vague, WordCount: words, Matched: phrase}
			}
		}
	}

	return Decision{Kind: Substantive, WordCount: words}
}

// IsMeta reports whether the transcript is a remark about the call itself.
func IsMeta(transcript string) bool {
	return Analyze(transcript).Kind == Meta
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "’", "'")
	return strings.Join(strings.Fields(text), " ")
}

func countWords(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		if strings.IndexFunc(field, isWordRune) < 0 {
			continue
		}
		// 中文没有空格分词，按字符粗略计数。
		cjk := 0
		for _, r := range field {
			if unicode.Is(unicode.Han, r) {
				cjk++
			}
		}
		if cjk > 0 {
			count += (cjk + 1) / 2
			continue
		}
		count++
	}
	return count
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsPhrase 以词边界匹配短语，避免 "um" 命中 "maximum"。
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], phrase)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '\'' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
