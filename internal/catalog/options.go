package catalog

// Options lists the choices offered by the course filter form.
type Options struct {
	Campuses         []string  `json:"campuses"`
	Terms            []string  `json:"terms"`
	Departments      []string  `json:"departments"`
	Semesters        []string  `json:"semesters"`
	InstructionModes []string  `json:"instruction_modes"`
	Credits          []float64 `json:"credits"`
}

// FilterOptions returns the filter choices. The first entry of Campuses,
// Terms and Departments is the "no filter" placeholder.
func FilterOptions() Options {
	return Options{
		Campuses: []string{AnyCampus, "IU Bloomington"},
		Terms:    []string{AnyTerm, "Spring 2023", "Fall 2023", "Spring 2024", "Fall 2024"},
		Departments: []string{
			AnyDepartment,
			"AAAD", "AADM", "AAST", "ABEH", "AERO", "AFRI", "AMST", "ANTH", "ARTH",
			"BUEX", "BUKD", "BUKX", "BUS", "CSCI", "ECON", "EDUC", "INST", "MSCH", "MSCI",
		},
		Semesters:        []string{"Spring", "Summer", "Fall"},
		InstructionModes: []string{"Online", "In-Person", "Hybrid"},
		Credits:          []float64{1, 2, 3, 4, 5, 6, 12},
	}
}
