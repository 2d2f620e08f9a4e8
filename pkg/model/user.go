package model

import "time"

type User struct {
	ID        string    `json:"id" bson:"_id" validate:"required,min=3,max=50,alphanumunicode"`
	Email     string    `json:"email" bson:"email" validate:"required,email,max=254"`
	Password  string    `json:"-" bson:"password_hash"`
	Role      string    `json:"role" bson:"role" validate:"required,oneof=admin user"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Credentials is the signup and login payload. The password is only ever held
// in memory; the store keeps a bcrypt hash.
type Credentials struct {
	ID       string `json:"id" validate:"required,min=3,max=50,alphanumunicode"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=4,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}
