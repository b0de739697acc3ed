// SPDX-License-Identifier: MPL-2.0

package record

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CategoryEssential      Category = "essential"
	CategoryEditor         Category = "editor"
	CategoryTerminal       Category = "terminal"
	CategoryLanguage       Category = "language"
	CategoryContainer      Category = "container"
	CategoryInfrastructure Category = "infrastructure"
	CategoryDatabase       Category = "database"
	CategoryNetwork        Category = "network"
	CategoryApplication    Category = "application"
	CategoryShell          Category = "shell"
	CategoryGit            Category = "git"
	CategoryBuild          Category = "build"
	CategoryOther          Category = "other"

	PlatformApt    Platform = "apt"
	PlatformBrew   Platform = "brew"
	PlatformDnf    Platform = "dnf"
	PlatformPacman Platform = "pacman"

	ProfileDeveloper   ProfileType = "developer"
	ProfileDevOps      ProfileType = "devops"
	ProfileDataScience ProfileType = "data-science"
	ProfileDesigner    ProfileType = "designer"
	ProfileMinimal     ProfileType = "minimal"
	ProfileCustom      ProfileType = "custom"

	// DependencyRequired marks a dependency that must be installed alongside the package.
	DependencyRequired DependencyType = "required"
	// DependencyOptional marks a dependency that only extends the package.
	DependencyOptional DependencyType = "optional"

	// MinPlatformCoverage is the number of non-null platform names every package must declare.
	MinPlatformCoverage = 2
)

var (
	// ErrInvalidCategory is returned when a Category value is not one of the defined categories.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidPlatform is returned when a Platform value is not one of the supported package managers.
	ErrInvalidPlatform = errors.New("invalid platform")
	// ErrInvalidProfileType is returned when a ProfileType value is not one of the defined profile types.
	ErrInvalidProfileType = errors.New("invalid profile type")
	// ErrInvalidDependencyType is returned when a DependencyType value is neither required nor optional.
	ErrInvalidDependencyType = errors.New("invalid dependency type")
)

type (
	// Category classifies a package or group.
	Category string

	// InvalidCategoryError is returned when a Category value is not recognized.
	// It wraps ErrInvalidCategory for errors.Is() compatibility.
	InvalidCategoryError struct {
		Value Category
	}

	// Platform is a package manager for which a package can declare a native name.
	Platform string

	// InvalidPlatformError is returned when a Platform value is not recognized.
	// It wraps ErrInvalidPlatform for errors.Is() compatibility.
	InvalidPlatformError struct {
		Value Platform
	}

	// ProfileType classifies an environment profile.
	ProfileType string

	// InvalidProfileTypeError is returned when a ProfileType value is not recognized.
	// It wraps ErrInvalidProfileType for errors.Is() compatibility.
	InvalidProfileTypeError struct {
		Value ProfileType
	}

	// DependencyType distinguishes required from optional dependency edges.
	DependencyType string

	// InvalidDependencyTypeError is returned when a DependencyType value is not recognized.
	// It wraps ErrInvalidDependencyType for errors.Is() compatibility.
	InvalidDependencyTypeError struct {
		Value DependencyType
	}
)

// Categories returns all categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryEssential, CategoryEditor, CategoryTerminal, CategoryLanguage,
		CategoryContainer, CategoryInfrastructure, CategoryDatabase, CategoryNetwork,
		CategoryApplication, CategoryShell, CategoryGit, CategoryBuild, CategoryOther,
	}
}

// AllPlatforms returns the package managers that count toward platform coverage.
func AllPlatforms() []Platform {
	return []Platform{PlatformApt, PlatformBrew, PlatformDnf, PlatformPacman}
}

// ProfileTypes returns all profile types in declaration order.
func ProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileDeveloper, ProfileDevOps, ProfileDataScience,
		ProfileDesigner, ProfileMinimal, ProfileCustom,
	}
}

// Error implements the error interface for InvalidCategoryError.
func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q (valid: %s)", e.Value, joinValues(Categories()))
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidCategoryError) Unwrap() error {
	return ErrInvalidCategory
}

// IsValid returns whether the Category is one of the defined categories,
// and a list of validation errors if it is not.
func (c Category) IsValid() (bool, []error) {
	for _, known := range Categories() {
		if c == known {
			return true, nil
		}
	}
	return false, []error{&InvalidCategoryError{Value: c}}
}

// String returns the string representation of the Category.
func (c Category) String() string {
	return string(c)
}

// Error implements the error interface for InvalidPlatformError.
func (e *InvalidPlatformError) Error() string {
	return fmt.Sprintf("invalid platform %q (valid: %s)", e.Value, joinValues(AllPlatforms()))
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidPlatformError) Unwrap() error {
	return ErrInvalidPlatform
}

// IsValid returns whether the Platform is one of the supported package managers,
// and a list of validation errors if it is not.
func (p Platform) IsValid() (bool, []error) {
	switch p {
	case PlatformApt, PlatformBrew, PlatformDnf, PlatformPacman:
		return true, nil
	default:
		return false, []error{&InvalidPlatformError{Value: p}}
	}
}

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// Error implements the error interface for InvalidProfileTypeError.
func (e *InvalidProfileTypeError) Error() string {
	return fmt.Sprintf("invalid profile type %q (valid: %s)", e.Value, joinValues(ProfileTypes()))
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidProfileTypeError) Unwrap() error {
	return ErrInvalidProfileType
}

// IsValid returns whether the ProfileType is one of the defined profile types,
// and a list of validation errors if it is not.
func (t ProfileType) IsValid() (bool, []error) {
	for _, known := range ProfileTypes() {
		if t == known {
			return true, nil
		}
	}
	return false, []error{&InvalidProfileTypeError{Value: t}}
}

// String returns the string representation of the ProfileType.
func (t ProfileType) String() string {
	return string(t)
}

// Error implements the error interface for InvalidDependencyTypeError.
func (e *InvalidDependencyTypeError) Error() string {
	return fmt.Sprintf("invalid dependency type %q (valid: required, optional)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidDependencyTypeError) Unwrap() error {
	return ErrInvalidDependencyType
}

// IsValid returns whether the DependencyType is required or optional,
// and a list of validation errors if it is not.
func (t DependencyType) IsValid() (bool, []error) {
	switch t {
	case DependencyRequired, DependencyOptional:
		return true, nil
	default:
		return false, []error{&InvalidDependencyTypeError{Value: t}}
	}
}

// String returns the string representation of the DependencyType.
func (t DependencyType) String() string {
	return string(t)
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
