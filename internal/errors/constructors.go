package errors

// Convenience constructors for common error patterns

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(cause error) *BuildError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration is invalid")
}

func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

func SchemaViolation(page string, cause error) *BuildError {
	return Wrap(cause, CategoryValidation, SeverityError, "frontmatter schema violation").
		WithContext("page", page)
}

// Discovery errors

func DiscoveryFailed(cause error) *BuildError {
	return Wrap(cause, CategoryDiscovery, SeverityFatal, "content discovery failed")
}

func UnreadableDirectory(path string, cause error) *BuildError {
	return Wrap(cause, CategoryFileSystem, SeverityWarning, "directory is not readable").
		WithContext("path", path)
}

func SymlinkLoop(path string) *BuildError {
	return New(CategoryDiscovery, SeverityWarning, "symlink loop detected, skipping subtree").
		WithContext("path", path)
}

func FrontmatterBroken(path string, cause error) *BuildError {
	return Wrap(cause, CategoryFrontmatter, SeverityWarning, "frontmatter could not be parsed").
		WithContext("path", path)
}

// Cache errors

func CacheCorrupt(cause error) *BuildError {
	return Wrap(cause, CategoryCache, SeverityWarning, "build cache unreadable, treating as cold")
}

func CacheWriteFailed(path string, cause error) *BuildError {
	return Wrap(cause, CategoryCache, SeverityError, "build cache write failed").
		WithContext("path", path)
}

// Contract errors

func NotInitialized(component string) *BuildError {
	return New(CategoryContract, SeverityFatal, "used before initialization").
		WithContext("component", component)
}

// Render errors

func RenderFailed(page string, cause error) *BuildError {
	return Wrap(cause, CategoryRender, SeverityError, "page render failed").
		WithContext("page", page)
}
