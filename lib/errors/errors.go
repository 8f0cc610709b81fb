package errors

var (
	InvalidEnvelope          = NewError(100, "invalid envelope")
	UnauthorizedSender       = NewError(101, "unauthorized sender")
	UnknownWitnessMessage    = NewError(102, "unknown witness message")
	UnknownConsensusInstance = NewError(103, "unknown consensus instance")
	ChannelUnavailable       = NewError(104, "channel unavailable")
	UnsupportedMessageType   = NewError(105, "unsupported message type")
	DuplicatedMessage        = NewError(106, "message already handled")
	InvalidMessageData       = NewError(107, "invalid message data")
	InvalidChannel           = NewError(108, "invalid channel")
	InvalidMessageID         = NewError(109, "message id does not match data and signature")

	OrganizationNotFound      = NewError(120, "organization not found")
	OrganizationAlreadyExists = NewError(121, "organization already exists")
	InvalidOrganization       = NewError(122, "invalid organization")

	ConsensusNodeNotFound      = NewError(130, "consensus node not found")
	ConsensusInstanceFinished  = NewError(131, "consensus instance already finished")
	ConsensusInstanceDuplicate = NewError(132, "consensus instance already exists")
	ConflictingResponse        = NewError(133, "conflicting response from the same acceptor")

	PendingActionNotFound  = NewError(140, "pending action not found")
	InvalidThresholdPolicy = NewError(141, "invalid threshold policy")

	NotSubscribed     = NewError(150, "channel is not subscribed")
	AlreadySubscribed = NewError(151, "channel is already subscribed")
	TransportStopped  = NewError(152, "transport is stopped")

	StorageRecordDoesNotExist = NewError(160, "record does not exist in storage")
	StorageRecordAlreadyExist = NewError(161, "record already exists in storage")
	StorageCoreError          = NewError(162, "storage error")
	InvalidStorageConfig      = NewError(163, "invalid storage config")

	PoolFinished = NewError(170, "worker pool is finished")

	BadRequestParameter = NewError(180, "bad request parameter")
)
