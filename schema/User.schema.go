// Package schema holds the sample entity and repository declarations the
// generator compiles. Structs are managed types, `aotq` tags mark ids and
// embeddables, and interfaces ending in Repository declare query methods.
package schema

import (
	"time"

	"github.com/veldran/aotq/runtime"
)

type User struct {
	ID        string `aotq:"id"`
	Lastname  string
	Firstname string
	Age       int
	Active    bool
	CreatedAt time.Time
	Address   Address `aotq:"embedded"`
	Manager   *User
	Roles     []string
}

type Address struct {
	Street string
	City   string
}

// UserName is a struct projection over a subset of User.
type UserName struct {
	Firstname string
	Lastname  string
}

// UserView is an interface projection; queries returning it keep their
// full select clause and tolerate over-fetching.
type UserView interface {
	GetLastname() string
}

type UserRepository interface {
	FindByLastname(lastname string) ([]User, error)

	// aotq:query select u from User u where u.active = true
	FindActive() ([]User, error)

	// aotq:query SELECT * FROM users WHERE lastname = :lastname
	// aotq:native
	FindNativeByLastname(lastname string) ([]User, error)

	FindByAgeGreaterThan(age int, page runtime.Pageable) (runtime.Page[User], error)

	// aotq:query select u from #{#entityName} u where u.active = true
	FindActiveNames(page runtime.Pageable) (runtime.Page[UserName], error)

	FindByLastnameAndFirstname(lastname, firstname string) ([]User, error)

	FindTop3ByActiveTrueOrderByCreatedAtDesc() ([]User, error)

	ExistsByLastname(lastname string) (bool, error)

	CountByActiveTrue() (int64, error)

	DeleteByLastname(lastname string) (int64, error)
}
