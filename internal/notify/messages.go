package notify

import (
	"fmt"
	"strconv"
)

func newNotification(travelerID, journeyID string, t Type, title, body string) Notification {
	return Notification{
		TravelerID: travelerID,
		Title:      title,
		Body:       body,
		Type:       t,
		Data: map[string]string{
			"journeyId": journeyID,
			"type":      string(t),
		},
	}
}

// JourneyStart announces the first vehicle, fare range and transfer count.
func JourneyStart(travelerID, journeyID, mode string, minFare, maxFare float64, transfers int) Notification {
	body := fmt.Sprintf("Board a %s. Expect to pay %s to %s with %s.",
		mode, formatFare(minFare), formatFare(maxFare), pluralize(transfers, "transfer"))
	n := newNotification(travelerID, journeyID, TypeJourneyStart, "Your journey has started", body)
	n.Data["transportMode"] = mode
	n.Data["transfers"] = strconv.Itoa(transfers)
	return n
}

// ApproachingStop tells the traveler a stop is near.
func ApproachingStop(travelerID, journeyID, stopName string, distanceM float64) Notification {
	body := fmt.Sprintf("%s is %dm away.", stopName, int(distanceM))
	n := newNotification(travelerID, journeyID, TypeApproachingStop, "Approaching "+stopName, body)
	n.Data["stopName"] = stopName
	return n
}

// TransferAlert reminds the traveler a transfer is coming up.
func TransferAlert(travelerID, journeyID, transferName string, etaMin int) Notification {
	body := fmt.Sprintf("You will reach %s in about %s. Get ready to change vehicles.",
		transferName, pluralize(etaMin, "minute"))
	n := newNotification(travelerID, journeyID, TypeTransferAlert, "Transfer coming up", body)
	n.Data["transferName"] = transferName
	return n
}

// TransferImminent tells the traveler to get off soon.
func TransferImminent(travelerID, journeyID, transferName string) Notification {
	body := fmt.Sprintf("Get ready to alight at %s.", transferName)
	n := newNotification(travelerID, journeyID, TypeTransferImminent, "Transfer now", body)
	n.Data["transferName"] = transferName
	return n
}

// TransferComplete announces the next leg.
func TransferComplete(travelerID, journeyID, nextMode, nextEnd string, legNumber int) Notification {
	body := fmt.Sprintf("Board a %s towards %s.", nextMode, nextEnd)
	n := newNotification(travelerID, journeyID, TypeTransferComplete, fmt.Sprintf("Leg %d started", legNumber), body)
	n.Data["legNumber"] = strconv.Itoa(legNumber)
	n.Data["transportMode"] = nextMode
	return n
}

// DestinationAlert tells the traveler the destination is near.
func DestinationAlert(travelerID, journeyID, destination string, etaMin int) Notification {
	body := fmt.Sprintf("%s is about %s away.", destination, pluralize(etaMin, "minute"))
	return newNotification(travelerID, journeyID, TypeDestinationAlert, "Almost there", body)
}

// JourneyComplete announces arrival.
func JourneyComplete(travelerID, journeyID, destination string, durationMin int, totalFare float64) Notification {
	body := fmt.Sprintf("You arrived at %s after %s. Estimated fare %s.",
		destination, pluralize(durationMin, "minute"), formatFare(totalFare))
	n := newNotification(travelerID, journeyID, TypeJourneyComplete, "You have arrived", body)
	n.Data["durationMin"] = strconv.Itoa(durationMin)
	return n
}

// RatingRequest asks the traveler to rate a completed journey.
func RatingRequest(travelerID, journeyID string) Notification {
	return newNotification(travelerID, journeyID, TypeRatingRequest,
		"How was your trip?", "Rate your journey to help other travelers.")
}

// JourneyStopped confirms that tracking was stopped.
func JourneyStopped(travelerID, journeyID string) Notification {
	return newNotification(travelerID, journeyID, TypeJourneyStopped,
		"Tracking stopped", "We stopped following this journey.")
}

func formatFare(amount float64) string {
	return "₦" + strconv.FormatFloat(amount, 'f', 0, 64)
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
