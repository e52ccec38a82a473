package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mvjkel1/spotify-fav/app"
)

func init() {
	if err := godotenv.Load("vars.env"); err != nil {
		log.Fatal(err)
	}
}

func main() {
	application, err := app.NewApplication()
	if err != nil {
		log.Fatal(err)
	}
	defer application.Tracker.StopAll()

	e := application.Router()

	log.Fatal(e.Start(os.Getenv("ADDR")))
}
