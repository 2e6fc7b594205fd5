package dao

// CheckVersion validates a conditional write. Version zero denotes an insert
// that must not find an existing entity; any other version must equal the
// stored one. Stores increment the entity version after a successful write.
func CheckVersion(exists bool, stored, version int64) error {
	if version == 0 {
		if exists {
			return ErrConflict
		}
		return nil
	}
	if !exists {
		return ErrNotFound
	}
	if stored != version {
		return ErrConflict
	}
	return nil
}
