package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypePassenger UserType = "passenger"
	UserTypeDriver    UserType = "driver"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

type User struct {
	gorm.Model
	Username     string   `json:"username" gorm:"column:username;unique;not null"`
	Email        string   `json:"email" gorm:"column:email;unique;not null"`
	Password     string   `json:"-" gorm:"-"` // Temporary field for password handling
	PasswordHash string   `json:"-" gorm:"column:password_hash;not null"`
	PhoneNumber  string   `json:"phoneNumber" gorm:"column:phone_number"`
	UserType     UserType `json:"userType" gorm:"column:user_type;not null"`
	Gender       Gender   `json:"gender" gorm:"column:gender;not null;default:'other'"`
	AvatarURL    string   `json:"avatarUrl" gorm:"column:avatar_url"`
	CarPlate     string   `json:"carPlate" gorm:"column:car_plate;default:''"`
	CarMake      string   `json:"carMake" gorm:"column:car_make;default:''"`
	CarColor     string   `json:"carColor" gorm:"column:car_color;default:''"`
	FCMToken     string   `json:"-" gorm:"column:fcm_token"`

	// Rating aggregates, maintained inside the rating transaction
	RatingAverage float64 `json:"ratingAverage" gorm:"column:rating_average;default:0"`
	RatingCount   int     `json:"ratingCount" gorm:"column:rating_count;default:0"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
