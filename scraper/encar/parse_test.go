package encar

import (
	"testing"
	"time"
)

const fullDetailPage = `<html><head>
<script>var tracking = "조회수 999999";</script>
<style>.price { color: red; }</style>
</head><body>
<div class="detail_info">
  <span>조회수 1,234</span>
  <span>최초등록일 2021/03/15</span>
</div>
<div class="lease_info">
  <dl><dt>보증금</dt><dd>1,476만원</dd></dl>
  <dl><dt>월 납입금</dt><dd>180만원</dd></dl>
  <dl><dt>리스 기간</dt><dd>25개월</dd></dl>
</div>
</body></html>`

func TestParseDetailHTMLFullPage(t *testing.T) {
	e := ParseDetailHTML(fullDetailPage)

	if e.Views == nil || *e.Views != 1234 {
		t.Errorf("Views = %v; want 1234", e.Views)
	}
	want := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	if e.RegistrationDate == nil || !e.RegistrationDate.Equal(want) {
		t.Errorf("RegistrationDate = %v; want %v", e.RegistrationDate, want)
	}
	if e.DepositWon == nil || *e.DepositWon != 14_760_000 {
		t.Errorf("DepositWon = %v; want 14760000", e.DepositWon)
	}
	if e.MonthlyWon == nil || *e.MonthlyWon != 1_800_000 {
		t.Errorf("MonthlyWon = %v; want 1800000", e.MonthlyWon)
	}
	if e.TermMonths == nil || *e.TermMonths != 25 {
		t.Errorf("TermMonths = %v; want 25", e.TermMonths)
	}
	if !e.HasLeaseSignal() || e.CompleteTerms() == nil {
		t.Error("expected a complete lease signal")
	}
}

func TestParseDetailHTMLScriptTextIgnored(t *testing.T) {
	// The 999999 views figure lives inside a script tag and must not be
	// picked up; only the visible 1,234 counts.
	e := ParseDetailHTML(fullDetailPage)
	if e.Views == nil || *e.Views != 1234 {
		t.Errorf("Views = %v; want visible 1234, not script content", e.Views)
	}
}

func TestParseDetailHTMLLabelVariants(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		deposit int64
		monthly int64
		term    int
	}{
		{
			name:    "rental vocabulary",
			html:    `<body>선수금 500만원 월 렌트비 95.5만원 렌트 기간 36개월</body>`,
			deposit: 5_000_000,
			monthly: 955_000,
			term:    36,
		},
		{
			name:    "contract vocabulary",
			html:    `<body>계약금: 1,000만원 월세: 120만원 계약 기간: 48개월</body>`,
			deposit: 10_000_000,
			monthly: 1_200_000,
			term:    48,
		},
		{
			name:    "lease fee vocabulary",
			html:    `<body>보증금 2,000만원 월 리스료 210만원 리스 기간 24개월</body>`,
			deposit: 20_000_000,
			monthly: 2_100_000,
			term:    24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ParseDetailHTML(tt.html)
			if e.DepositWon == nil || *e.DepositWon != tt.deposit {
				t.Errorf("DepositWon = %v; want %d", e.DepositWon, tt.deposit)
			}
			if e.MonthlyWon == nil || *e.MonthlyWon != tt.monthly {
				t.Errorf("MonthlyWon = %v; want %d", e.MonthlyWon, tt.monthly)
			}
			if e.TermMonths == nil || *e.TermMonths != tt.term {
				t.Errorf("TermMonths = %v; want %d", e.TermMonths, tt.term)
			}
		})
	}
}

func TestParseDetailHTMLPriorityOrder(t *testing.T) {
	// 보증금 outranks 선수금 when both labels appear.
	e := ParseDetailHTML(`<body>선수금 999만원 보증금 1,476만원</body>`)
	if e.DepositWon == nil || *e.DepositWon != 14_760_000 {
		t.Errorf("DepositWon = %v; want the 보증금 value 14760000", e.DepositWon)
	}
}

func TestParseDetailHTMLMissingFields(t *testing.T) {
	e := ParseDetailHTML(`<body><h1>2021 벤츠 GLE 450</h1><p>무사고 차량입니다</p></body>`)

	if e.Views != nil {
		t.Errorf("Views = %v; want nil", e.Views)
	}
	if e.RegistrationDate != nil {
		t.Errorf("RegistrationDate = %v; want nil", e.RegistrationDate)
	}
	if e.HasLeaseSignal() {
		t.Error("expected no lease signal on a plain page")
	}
}

func TestParseDetailHTMLTermSanityWindow(t *testing.T) {
	tests := []struct {
		name string
		html string
		want *int
	}{
		{"below window", `<body>리스 기간 6개월</body>`, nil},
		{"above window", `<body>리스 기간 120개월</body>`, nil},
		{"lower bound", `<body>리스 기간 12개월</body>`, intPtr(12)},
		{"upper bound", `<body>리스 기간 60개월</body>`, intPtr(60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ParseDetailHTML(tt.html)
			switch {
			case tt.want == nil && e.TermMonths != nil:
				t.Errorf("TermMonths = %d; want nil", *e.TermMonths)
			case tt.want != nil && (e.TermMonths == nil || *e.TermMonths != *tt.want):
				t.Errorf("TermMonths = %v; want %d", e.TermMonths, *tt.want)
			}
		})
	}
}

func TestParseDetailHTMLMalformedAmountsSkipped(t *testing.T) {
	// A zero deposit is extraction noise; the parser moves on rather than
	// reporting it.
	e := ParseDetailHTML(`<body>보증금 0만원 선수금 800만원</body>`)
	if e.DepositWon == nil || *e.DepositWon != 8_000_000 {
		t.Errorf("DepositWon = %v; want fallback 8000000", e.DepositWon)
	}
}

func intPtr(n int) *int { return &n }
