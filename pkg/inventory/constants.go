package inventory

const (
	OperationPostMovement = "post_movement"
	OperationReceive      = "receive"
	OperationIssue        = "issue"
	OperationIssueAll     = "issue_all"
	OperationAdjust       = "adjust"
	OperationTransfer     = "transfer"
	OperationRepack       = "repack"
	OperationReserve      = "reserve"
	OperationRelease      = "release"
	OperationAmendNote    = "amend_note"
	OperationReconcile    = "reconcile"

	StatusOK    = "ok"
	StatusError = "error"

	StrategyTransactional = "transactional"
	StrategySaga          = "saga"

	ReferenceTypeTransfer = "TRANSFER"
	ReferenceTypeRepack   = "REPACK"

	operationService = "service"
	operationStartup = "startup"

	subjectMovement     = "movement"
	subjectSnapshot     = "snapshot"
	subjectReservation  = "reservation"
	subjectBucket       = "bucket"
	subjectItem         = "item"
	subjectWarehouse    = "warehouse"
	subjectLedger       = "ledger"
	subjectTransactions = "transactions"
	subjectCompensation = "compensation"

	codeInsufficient = "insufficient"
	codeConflict     = "conflict"
	codeLookup       = "lookup"
	codeMismatch     = "mismatch"
	codeInvalid      = "invalid"
	codeProbe        = "probe"
	codeUnsupported  = "unsupported"
	codeRollback     = "rollback"

	compensationReason = "saga compensation"
)
