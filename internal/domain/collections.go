package domain

const (
	CollectionUsers          = "users"
	CollectionDoctors        = "doctors"
	CollectionDoctorRequests = "doctorRequests"
	CollectionAppointments   = "appointments"
	CollectionSlots          = "slots"
	CollectionNotifications  = "notifications"
	CollectionChats          = "chats"
	CollectionFeatured       = "featuredDoctors"
	CollectionMeta           = "meta"
)

// MessagesCollection is the child collection holding a thread's messages.
func MessagesCollection(threadID string) string {
	return CollectionChats + "/" + threadID + "/messages"
}

// NotificationsCollection is the child collection holding one user's notifications.
func NotificationsCollection(userID string) string {
	return CollectionUsers + "/" + userID + "/" + CollectionNotifications
}

// DoctorAppointmentsCollection mirrors the appointments booked with a doctor.
func DoctorAppointmentsCollection(doctorID string) string {
	return CollectionDoctors + "/" + doctorID + "/" + CollectionAppointments
}

// PatientAppointmentsCollection mirrors the appointments a signed-in patient booked.
func PatientAppointmentsCollection(patientID string) string {
	return CollectionUsers + "/" + patientID + "/" + CollectionAppointments
}
