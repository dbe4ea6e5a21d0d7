package yahoo

// chartResponse is the top-level container of the v8 chart endpoint
type chartResponse struct {
	Chart chartData `json:"chart"`
}

type chartData struct {
	Result []chartResult `json:"result"`
	Error  *chartError   `json:"error"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string  `json:"symbol"`
	LongName             string  `json:"longName"`
	ShortName            string  `json:"shortName"`
	GMTOffset            int     `json:"gmtoffset"`
	ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketVolume  float64 `json:"regularMarketVolume"`
	FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
}

type indicators struct {
	Quote    []quote    `json:"quote"`
	AdjClose []adjClose `json:"adjclose"`
}

// null entries decode as zero
type quote struct {
	Low    []float64 `json:"low"`
	High   []float64 `json:"high"`
	Open   []float64 `json:"open"`
	Volume []float64 `json:"volume"`
	Close  []float64 `json:"close"`
}

type adjClose struct {
	AdjClose []float64 `json:"adjclose"`
}

func (m chartMeta) name() string {
	if m.LongName != "" {
		return m.LongName
	}
	return m.ShortName
}
