package search

import "foodvote/internal/bank"

// Document is the searchable view of one food.
type Document struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Votes       int64  `json:"votes"`
	Location    string `json:"location"`
	ServedToday bool   `json:"served_today"`
}

func documentFor(f *bank.Food, votes int64, today *bank.DailyMenu, locations map[string]*bank.Location) Document {
	doc := Document{ID: f.ID, Name: f.Name, Votes: votes, Location: f.Location}
	if loc, ok := locations[f.Location]; ok {
		doc.ServedToday = today.Serves(loc.ID, f.ID)
	}
	return doc
}
