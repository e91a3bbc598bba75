package domain

var Tables = []interface{}{
	// Catalog
	&Product{},
	// Shop
	&Cart{},
	// Intake
	&IntakeRequest{},
}
