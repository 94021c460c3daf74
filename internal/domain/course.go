package domain

// Course is a read-only catalog entry served by the external advisor service.
type Course struct {
	CourseID          string        `json:"course_id"`
	CourseName        string        `json:"course_name"`
	Department        string        `json:"department"`
	MinCredits        float64       `json:"min_credits"`
	MaxCredits        float64       `json:"max_credits"`
	Prerequisites     []string      `json:"prerequisites"`
	OfferedSemester   string        `json:"offered_semester"`
	CourseTitle       string        `json:"course_title"`
	CourseDescription string        `json:"course_description"`
	CourseDetails     CourseDetails `json:"course_details"`
}

// CourseDetails holds the per-section offering data of a course.
type CourseDetails struct {
	Classes           []CourseClass `json:"classes"`
	Attributes        []string      `json:"attributes"`
	Institution       string        `json:"institution"`
	CourseTopicID     int64         `json:"courseTopicId"`
	EffectiveDate     int64         `json:"effectiveDate"`
	AcademicCareer    string        `json:"academicCareer"`
	CourseOfferNumber int           `json:"courseOfferNumber"`
}

// CourseClass is one scheduled class (section) of a course.
type CourseClass struct {
	Car                 string       `json:"car"`
	Moi                 string       `json:"moi"`
	Inst                string       `json:"inst"`
	Strm                string       `json:"strm"`
	Campus              string       `json:"campus"`
	Closed              bool         `json:"closed"`
	AcadOrg             string       `json:"acadOrg"`
	Created             int64        `json:"created"`
	Primary             bool         `json:"primary"`
	ClassNbr            int          `json:"classNbr"`
	CourseID            string       `json:"courseId"`
	Location            string       `json:"location"`
	MaxUnits            float64      `json:"maxUnits"`
	MinUnits            float64      `json:"minUnits"`
	ClassType           string       `json:"classType"`
	OpenSeats           int          `json:"openSeats"`
	TotalSeats          int          `json:"totalSeats"`
	Description         *string      `json:"description"`
	SessionDescr        string       `json:"sessionDescr"`
	ModeOfInstruction   string       `json:"modeOfInstruction"`
	LocationDescription string       `json:"locationDescription"`
	PrimaryInstructors  []Instructor `json:"primaryInstructors"`
	Meetings            []Meeting    `json:"meetings"`
}

// Instructor is a teaching assignment on a class.
type Instructor struct {
	Role       string  `json:"role"`
	FullName   string  `json:"fullName"`
	LastName   string  `json:"lastName"`
	FirstName  string  `json:"firstName"`
	MiddleName *string `json:"middleName"`
}

// Meeting is a weekly meeting slot of a class.
type Meeting struct {
	Room         string `json:"room"`
	MeetingDays  string `json:"meetingDays"`
	Component    string `json:"component"`
	BuildingName string `json:"buildingName"`
	ClassSection string `json:"classSection"`
}

// CourseTrend is one year of historical statistics for a course.
type CourseTrend struct {
	Year            int     `json:"year"`
	SlotsFilled     int     `json:"slots_filled"`
	TotalSlots      int     `json:"total_slots"`
	AvgRating       float64 `json:"avg_rating"`
	SlotsFilledTime float64 `json:"slots_filled_time"`
	AvgGPA          float64 `json:"avg_gpa"`
	AvgHoursSpent   float64 `json:"avg_hours_spent"`
}

// CourseTrends is the historical performance report of a course.
type CourseTrends struct {
	CourseID      string        `json:"course_id"`
	CourseName    string        `json:"course_name"`
	Trends        []CourseTrend `json:"trends"`
	TrendAnalysis string        `json:"trend_analysis"`
}
