package domain

// Application is a licensable product such as "Frotas".
type Application struct {
	ID   string
	Key  string
	Name string
}

// Module groups Features inside one Application.
type Module struct {
	ID            string
	ApplicationID string
	Key           string
	Name          string
}

// Feature is the unit permissions are granted and checked against.
type Feature struct {
	ID       string
	ModuleID string
	Key      string
	Name     string
}
