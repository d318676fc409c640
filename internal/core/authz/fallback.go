package authz

import "dictat/internal/domain"

// Fallback 策略引擎不可用时的本地规则表，默认拒绝
func Fallback(req Request) bool {
	a := req.Actor
	if a.Role == domain.RoleAdmin {
		return true
	}
	owned := req.Resource.OwnerID == "" || req.Resource.OwnerID == a.ID

	switch req.Resource.Type {
	case ResDictation:
		switch a.Role {
		case domain.RoleDoctor:
			switch req.Action {
			case ActCreate, ActRead, ActUpdate, ActDelete:
				return owned
			}
		case domain.RoleSecretary:
			switch req.Action {
			case ActRead, ActClaim, ActUnclaim:
				return true
			}
		}
	case ResTranscription:
		switch a.Role {
		case domain.RoleSecretary:
			switch req.Action {
			case ActRead:
				return true
			case ActCreate, ActUpdate, ActSubmit:
				return owned
			}
		case domain.RoleDoctor:
			switch req.Action {
			case ActRead, ActApprove, ActReject:
				return true
			}
		}
	}
	return false
}
