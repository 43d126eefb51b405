package models

import "gorm.io/gorm"

// Descendants are deleted explicitly, child tables first, so the result does
// not depend on the driver enforcing ON DELETE CASCADE. The returned count is
// the number of root rows removed. Each function must run inside a transaction.

// DeletePatientCascade removes a patient together with its cases, sessions and messages.
func DeletePatientCascade(tx *gorm.DB, patientID string) (int64, error) {
	if err := tx.Where("patient_id = ?", patientID).Delete(&SessionMessage{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("patient_id = ?", patientID).Delete(&ChatSession{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("patient_id = ?", patientID).Delete(&Case{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("patient_id = ?", patientID).Delete(&Patient{})
	return res.RowsAffected, res.Error
}

// DeleteCaseCascade removes a case together with its sessions and messages.
func DeleteCaseCascade(tx *gorm.DB, caseID string) (int64, error) {
	if err := tx.Where("case_id = ?", caseID).Delete(&SessionMessage{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("case_id = ?", caseID).Delete(&ChatSession{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("case_id = ?", caseID).Delete(&Case{})
	return res.RowsAffected, res.Error
}

// DeleteSessionCascade removes a chat session together with its messages.
func DeleteSessionCascade(tx *gorm.DB, sessionID string) (int64, error) {
	if err := tx.Where("session_id = ?", sessionID).Delete(&SessionMessage{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("session_id = ?", sessionID).Delete(&ChatSession{})
	return res.RowsAffected, res.Error
}

// DeleteUserCascade removes a user together with its tokens.
func DeleteUserCascade(tx *gorm.DB, userID string) (int64, error) {
	if err := tx.Where("user_id = ?", userID).Delete(&Token{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("user_id = ?", userID).Delete(&User{})
	return res.RowsAffected, res.Error
}
