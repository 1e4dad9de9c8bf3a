package indicators

// Canonical indicator column names as stored in the indicators table.
const (
	ColSMA20         = "sma_20"
	ColSMA50         = "sma_50"
	ColSMA200        = "sma_200"
	ColMACDLine      = "macd_line"
	ColMACDSignal    = "macd_signal"
	ColMACDHistogram = "macd_histogram"
	ColADX           = "adx"
	ColRSI           = "rsi"
	ColStochK        = "stoch_k"
	ColStochD        = "stoch_d"
	ColCCI           = "cci"
	ColWilliamsR     = "williams_r"
	ColBBUpper       = "bb_upper"
	ColBBMiddle      = "bb_middle"
	ColBBLower       = "bb_lower"
	ColBBWidth       = "bb_width"
	ColPercentB      = "percent_b"
	ColATR           = "atr"
	ColOBV           = "obv"
	ColCMF           = "cmf"
	ColMFI           = "mfi"
	ColVolumeSMA     = "volume_sma"
)
