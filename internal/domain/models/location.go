package models

// Location is a campus site code the client offers for the location column.
type Location struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultLocationCode is preselected by the scanning client.
const DefaultLocationCode = "EIEAB"

// Locations is the site catalog served to clients.
var Locations = []Location{
	{Code: "ALUM", Name: "Alumni Center"},
	{Code: "ATEC", Name: "Advance Tooling Engineering Center"},
	{Code: "CESS", Name: "Community Engagement & Student Success Building"},
	{Code: "VABL", Name: "Visual Arts Building"},
	{Code: "ESWOT", Name: "Social Work & Occupational Therapy"},
	{Code: "EITTB", Name: "International Trade & Technology Building"},
	{Code: "ECOXT", Name: "Orville Cox Tennis Center"},
	{Code: "ETRAK", Name: "Track & Soccer Field"},
	{Code: "EPACA", Name: "Performing Arts Complex A"},
	{Code: "EPACB", Name: "Performing Arts Complex B"},
	{Code: "EPACC", Name: "Performing Arts Complex C"},
	{Code: "ESSBL", Name: "Executive Tower / Student Services Building / Visitors Center"},
	{Code: "EMASS", Name: "Marialice Shary Shivers Building"},
	{Code: "ESTAC", Name: "Student Academic Center"},
	{Code: "EUCTR", Name: "University Center"},
	{Code: "ECHAP", Name: "Chapel"},
	{Code: "ESTUN", Name: "Student Union"},
	{Code: "EDBCX", Name: "Dining & Ballroom Complex"},
	{Code: "EHPE2", Name: "Health & Physical Education II"},
	{Code: "EENGR", Name: "Engineering Building"},
	{Code: "EACSB", Name: "Academic Services Building"},
	{Code: "EPHYS", Name: "Physical Science Building"},
	{Code: "EIMFD", Name: "Intramural Fields"},
	{Code: "ETROX", Name: "Troxel Hall"},
	{Code: "EHRTG", Name: "Heritage Hall"},
	{Code: "EEDUC", Name: "Education Complex"},
	{Code: "EMAGC", Name: "Mathematics & General Classrooms"},
	{Code: "ECCTR", Name: "Computer Center"},
	{Code: "ECOBE", Name: "Robert C. Vackar College of Business & Entrepreneurship"},
	{Code: "ECULP", Name: "Central Utility Plant"},
	{Code: "EHABE", Name: "Health Affairs Building East"},
	{Code: "EBNSB", Name: "Behavioral Neurosciences Building"},
	{Code: "EHABW", Name: "Health Affairs Building West"},
	{Code: "ELABN", Name: "Liberal Arts Building North"},
	{Code: "EUNTY", Name: "Unity Hall"},
	{Code: "EPOB14", Name: "Physical Science Portable 14"},
	{Code: DefaultLocationCode, Name: "Interdisciplinary Engineering & Academic Building"},
}
