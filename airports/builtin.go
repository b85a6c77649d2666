package airports

// builtin is the dataset used when no airports file is configured.
// Major European and intercontinental hubs; deployments that need a
// wider net ship their own YAML file.
var builtin = []Airport{
	{Code: "AMS", City: "Amsterdam", Country: "Netherlands"},
	{Code: "ATH", City: "Athens", Country: "Greece"},
	{Code: "BCN", City: "Barcelona", Country: "Spain"},
	{Code: "BER", City: "Berlin", Country: "Germany"},
	{Code: "BKK", City: "Bangkok", Country: "Thailand"},
	{Code: "BUD", City: "Budapest", Country: "Hungary"},
	{Code: "CDG", City: "Paris", Country: "France"},
	{Code: "CPH", City: "Copenhagen", Country: "Denmark"},
	{Code: "DUB", City: "Dublin", Country: "Ireland"},
	{Code: "DXB", City: "Dubai", Country: "United Arab Emirates"},
	{Code: "FCO", City: "Rome", Country: "Italy"},
	{Code: "FRA", City: "Frankfurt", Country: "Germany"},
	{Code: "GVA", City: "Geneva", Country: "Switzerland"},
	{Code: "HEL", City: "Helsinki", Country: "Finland"},
	{Code: "IST", City: "Istanbul", Country: "Turkey"},
	{Code: "JFK", City: "New York", Country: "United States"},
	{Code: "KEF", City: "Reykjavik", Country: "Iceland"},
	{Code: "LHR", City: "London", Country: "United Kingdom"},
	{Code: "LIS", City: "Lisbon", Country: "Portugal"},
	{Code: "MAD", City: "Madrid", Country: "Spain"},
	{Code: "MUC", City: "Munich", Country: "Germany"},
	{Code: "MXP", City: "Milan", Country: "Italy"},
	{Code: "NRT", City: "Tokyo", Country: "Japan"},
	{Code: "OPO", City: "Porto", Country: "Portugal"},
	{Code: "OSL", City: "Oslo", Country: "Norway"},
	{Code: "PRG", City: "Prague", Country: "Czech Republic"},
	{Code: "RIX", City: "Riga", Country: "Latvia"},
	{Code: "SIN", City: "Singapore", Country: "Singapore"},
	{Code: "SOF", City: "Sofia", Country: "Bulgaria"},
	{Code: "STO", City: "Stockholm", Country: "Sweden"},
	{Code: "TBS", City: "Tbilisi", Country: "Georgia"},
	{Code: "VIE", City: "Vienna", Country: "Austria"},
	{Code: "WAW", City: "Warsaw", Country: "Poland"},
	{Code: "ZRH", City: "Zurich", Country: "Switzerland"},
}
