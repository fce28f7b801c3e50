package encar

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
)

// Label patterns for the detail page, in priority order: the first match per
// field wins, later patterns are only consulted when earlier ones miss.
var (
	viewsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`조회수\s*([\d,]+)`),
	}

	registrationPattern = regexp.MustCompile(`최초등록일\s*(\d{4}/\d{2}/\d{2})`)

	depositPatterns = []*regexp.Regexp{
		regexp.MustCompile(`보증금[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
		regexp.MustCompile(`선수금[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
		regexp.MustCompile(`계약금[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
	}

	monthlyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`월\s*납입금[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
		regexp.MustCompile(`월\s*리스료[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
		regexp.MustCompile(`월\s*렌트비[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
		regexp.MustCompile(`월세[:\s]*([\d,]+(?:\.\d+)?)\s*만원`),
	}

	termPatterns = []*regexp.Regexp{
		regexp.MustCompile(`리스\s*기간[:\s]*(\d+)\s*개월`),
		regexp.MustCompile(`계약\s*기간[:\s]*(\d+)\s*개월`),
		regexp.MustCompile(`렌트\s*기간[:\s]*(\d+)\s*개월`),
	}
)

// Lease terms outside this window are treated as extraction noise.
const (
	minLeaseTermMonths = 12
	maxLeaseTermMonths = 60
)

// ParseDetailHTML extracts the optional enrichment fields from a rendered
// detail page. Fields that are not found stay nil; this function never fails,
// a page with nothing recognizable just yields an empty enrichment.
func ParseDetailHTML(html string) *models.Enrichment {
	text := renderedText(html)

	e := &models.Enrichment{}
	e.Views = parseViews(text)
	e.RegistrationDate = parseRegistrationDate(text)
	e.DepositWon = parseAmountField(text, depositPatterns)
	e.MonthlyWon = parseAmountField(text, monthlyPatterns)
	e.TermMonths = parseTerm(text)
	return e
}

// renderedText reduces the page HTML to its visible text so label patterns
// match what a user sees, not markup or script bodies.
func renderedText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

func parseViews(text string) *int {
	for _, re := range viewsPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err == nil && n >= 0 {
				return &n
			}
		}
	}
	return nil
}

func parseRegistrationDate(text string) *time.Time {
	m := registrationPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	t, err := time.Parse("2006/01/02", m[1])
	if err != nil {
		return nil
	}
	return &t
}

func parseAmountField(text string, patterns []*regexp.Regexp) *int64 {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			won, err := currency.ParseAmount(m[1] + "만원")
			if err != nil || won <= 0 {
				continue
			}
			return &won
		}
	}
	return nil
}

func parseTerm(text string) *int {
	for _, re := range termPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if n < minLeaseTermMonths || n > maxLeaseTermMonths {
				continue
			}
			return &n
		}
	}
	return nil
}
