package encar

import "testing"

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    string
	}{
		{
			name: "year min and price max",
			filters: Filters{
				Manufacturer:   "벤츠",
				ModelGroup:     "GLE-클래스",
				YearMin:        2021,
				PriceMaxManwon: 9000,
			},
			want: "(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.벤츠._.ModelGroup.GLE-클래스.))_.Year.range(202100..)._.Price.range(..9000).)",
		},
		{
			name: "no ranges",
			filters: Filters{
				Manufacturer: "BMW",
				ModelGroup:   "5시리즈",
			},
			want: "(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.BMW._.ModelGroup.5시리즈.)))",
		},
		{
			name: "bounded year window",
			filters: Filters{
				Manufacturer: "벤츠",
				ModelGroup:   "GLE-클래스",
				YearMin:      2021,
				YearMax:      2023,
			},
			want: "(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.벤츠._.ModelGroup.GLE-클래스.))_.Year.range(202100..202399).)",
		},
		{
			name: "price band with mileage cap",
			filters: Filters{
				Manufacturer:   "벤츠",
				ModelGroup:     "GLE-클래스",
				PriceMinManwon: 1000,
				PriceMaxManwon: 8000,
				MileageMaxKm:   60000,
			},
			want: "(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.벤츠._.ModelGroup.GLE-클래스.))_.Price.range(1000..8000)._.Mileage.range(..60000).)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildQuery(tt.filters); got != tt.want {
				t.Errorf("BuildQuery() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestSortParam(t *testing.T) {
	tests := []struct {
		offset, limit int
		want          string
	}{
		{0, 20, "|ModifiedDate|0|20"},
		{40, 20, "|ModifiedDate|40|20"},
		{200, 50, "|ModifiedDate|200|50"},
	}

	for _, tt := range tests {
		if got := sortParam(tt.offset, tt.limit); got != tt.want {
			t.Errorf("sortParam(%d, %d) = %q; want %q", tt.offset, tt.limit, got, tt.want)
		}
	}
}
