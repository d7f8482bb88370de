package responder

import (
	"regexp"
	"strings"

	"github.com/soyeahso/chevai-chat/internal/catalog"
)

// Intent is the single classification of a customer message.
type Intent int

const (
	IntentGeneric Intent = iota
	IntentGreeting
	IntentSizeInquiry
	IntentImageConfirmation
	IntentSetQuery
)

func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "greeting"
	case IntentSizeInquiry:
		return "size_inquiry"
	case IntentImageConfirmation:
		return "image_confirmation"
	case IntentSetQuery:
		return "set_query"
	default:
		return "generic"
	}
}

var (
	greetingPattern     = regexp.MustCompile(`(?i)^(chào|hello|hi|xin chào|hey)$`)
	sizePattern         = regexp.MustCompile(`(?i)(cân\s*nặng|kg|size|vừa|không|fit|lớn|nhỏ|rộng|chật|mặc.*có|đi.*được|phù\s*hợp|fit.*không)`)
	specificTypePattern = regexp.MustCompile(`(?i)(hoodie|sweater|jogger|t-shirt|áo thun|quần|ringer|relaxed)`)
	affirmationPattern  = regexp.MustCompile(`(?i)^(có|ok|yes|được|đồng\s*ý|ừ|ừm|vâng)$`)
	showMePattern       = regexp.MustCompile(`(?i)(có.*xem|xem.*ảnh|show.*image|muốn.*xem|cho.*xem|ảnh.*sản\s*phẩm|ảnh.*đó|cho.*mình.*xem.*ảnh|ảnh.*của.*sản.*phẩm)`)
	setHintPattern      = regexp.MustCompile(`(?i)(set|bộ|combo|outfit|phối)`)
)

// Classify maps a message to exactly one Intent. Rules are tried in order:
// greeting, size inquiry, image confirmation, set query.
//
// Image confirmation covers bare affirmations ("có", "ok") and explicit
// requests to see a picture, but never a message that names a product type,
// since that is a new query rather than a follow-up.
func Classify(text string) Intent {
	t := strings.TrimSpace(text)

	switch {
	case greetingPattern.MatchString(t):
		return IntentGreeting
	case sizePattern.MatchString(t):
		return IntentSizeInquiry
	case !specificTypePattern.MatchString(t) && (affirmationPattern.MatchString(t) || showMePattern.MatchString(t)):
		return IntentImageConfirmation
	case catalog.IsSetQuery(t):
		return IntentSetQuery
	default:
		return IntentGeneric
	}
}

// wantsSetHint reports whether the prompt should ask for a top and a bottom.
func wantsSetHint(text string) bool {
	return setHintPattern.MatchString(text)
}

var (
	shirtWordPattern = regexp.MustCompile(`(?i)(shirt|tshirt|t-shirt|hoodie|sweater|ringer|relaxed)`)
	pantsWordPattern = regexp.MustCompile(`(?i)(quần|pants|jogger|jean)`)
	jacketAfterAo    = regexp.MustCompile(`^\s*khoác`)
)

// asksForShirt reports whether a query is about top-wear. "áo khoác"
// (jacket) does not count.
func asksForShirt(query string) bool {
	if shirtWordPattern.MatchString(query) {
		return true
	}
	q := strings.ToLower(query)
	for {
		i := strings.Index(q, "áo")
		if i < 0 {
			return false
		}
		q = q[i+len("áo"):]
		if !jacketAfterAo.MatchString(q) {
			return true
		}
	}
}

func asksForPants(query string) bool {
	return pantsWordPattern.MatchString(query)
}
