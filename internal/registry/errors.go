package registry

import "errors"

// ErrNotFound — задача с таким именем не зарегистрирована.
var ErrNotFound = errors.New("task not found in registry")
