package model

import "fmt"

// DetailPath builds the event detail page path for an event id.
func DetailPath(id int) string {
	return fmt.Sprintf("/event/%d/", id)
}

// DemoEvents returns the built-in demonstration dataset rendered when the
// upstream event list cannot be loaded. Two fixed events near the Moscow
// city centre.
func DemoEvents() []Event {
	return []Event{
		{
			ID:                 1,
			Title:              "Тестовое мероприятие 1",
			Latitude:           55.76,
			Longitude:          37.64,
			Location:           "Москва, Красная площадь",
			Price:              0,
			CategoryName:       "Тест",
			OrganizerName:      "Система",
			ShortDescription:   "Тестовое мероприятие для демонстрации",
			AverageRating:      4.5,
			RegistrationsCount: 25,
		},
		{
			ID:                 2,
			Title:              "Тестовое мероприятие 2",
			Latitude:           55.75,
			Longitude:          37.65,
			Location:           "Москва, Кремль",
			Price:              1000,
			CategoryName:       "Тест",
			OrganizerName:      "Система",
			ShortDescription:   "Еще одно тестовое мероприятие",
			AverageRating:      4.2,
			RegistrationsCount: 50,
		},
	}
}
