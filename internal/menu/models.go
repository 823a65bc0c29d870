package menu

// Endpoint is the dining services GraphQL API.
const Endpoint = "https://api.hfs.purdue.edu/menus/v3/GraphQL"

const operationName = "getFoodNames"

const query = `
query getFoodNames($date: Date!) {
    diningCourts {
        formalName
        dailyMenu(date: $date) {
            meals {
                name
                stations {
                    name
                    items {
                        item {
                            name
                        }
                    }
                }
            }
        }
    }
}`

type request struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

// response mirrors the subset of the GraphQL schema the client asks for.
type response struct {
	Data   *data          `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type data struct {
	DiningCourts []diningCourt `json:"diningCourts"`
}

type diningCourt struct {
	FormalName string     `json:"formalName"`
	DailyMenu  *dailyMenu `json:"dailyMenu"`
}

type dailyMenu struct {
	Meals []meal `json:"meals"`
}

type meal struct {
	Name     string    `json:"name"`
	Stations []station `json:"stations"`
}

type station struct {
	Name  string      `json:"name"`
	Items []itemShell `json:"items"`
}

type itemShell struct {
	Item item `json:"item"`
}

type item struct {
	Name string `json:"name"`
}
