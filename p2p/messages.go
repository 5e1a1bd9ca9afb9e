package p2p

import (
	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/serialize"
)

// MessageType tags the one-byte message kind at the front of every framed
// P2P message (spec §6.4). Grounded on
// original_source/src/core/peer_messages.cpp's msg namespace.
type MessageType byte

const (
	TypeHandshake MessageType = iota
	TypePing
	TypePong
	TypeTransaction
	TypeBlock
	TypeGetBlock
	TypeBlockNotFound
	TypeLookup
	TypeLookupResponse
	TypeCannotAccept
	TypeAccepted
	TypeClose
)

// PeerInfo is the address/endpoint pair exchanged in LOOKUP_RESPONSE and
// CANNOT_ACCEPT's alternates list, mirroring Peer::Info.
type PeerInfo struct {
	Address  common.Address
	Endpoint string
}

func (p PeerInfo) serializeInto(w *serialize.Writer) {
	w.WriteFixed(p.Address[:])
	w.WriteBytes([]byte(p.Endpoint))
}

func deserializePeerInfo(r *serialize.Reader) (PeerInfo, error) {
	addr, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return PeerInfo{}, err
	}
	ep, err := r.ReadBytes()
	if err != nil {
		return PeerInfo{}, err
	}
	return PeerInfo{Address: common.BytesToAddress(addr), Endpoint: string(ep)}, nil
}

// Handshake is the first message a connecting peer sends, mirroring
// msg::Connect.
type Handshake struct {
	Address      common.Address
	PublicPort   uint16
	TopBlockHash common.Hash
}

func (m Handshake) Type() MessageType { return TypeHandshake }

func (m Handshake) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Address[:])
	w.WriteUint16(m.PublicPort)
	w.WriteFixed(m.TopBlockHash[:])
	return w.Bytes()
}

func DeserializeHandshake(r *serialize.Reader) (Handshake, error) {
	addr, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return Handshake{}, err
	}
	port, err := r.ReadUint16()
	if err != nil {
		return Handshake{}, err
	}
	hash, err := r.ReadFixed(common.HashLength)
	if err != nil {
		return Handshake{}, err
	}
	return Handshake{
		Address:      common.BytesToAddress(addr),
		PublicPort:   port,
		TopBlockHash: common.BytesToHash(hash),
	}, nil
}

// Accepted answers a Handshake once the table has room, mirroring
// msg::Accepted.
type Accepted struct {
	Address      common.Address
	PublicPort   uint16
	TopBlockHash common.Hash
}

func (m Accepted) Type() MessageType { return TypeAccepted }

func (m Accepted) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Address[:])
	w.WriteUint16(m.PublicPort)
	w.WriteFixed(m.TopBlockHash[:])
	return w.Bytes()
}

func DeserializeAccepted(r *serialize.Reader) (Accepted, error) {
	addr, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return Accepted{}, err
	}
	port, err := r.ReadUint16()
	if err != nil {
		return Accepted{}, err
	}
	hash, err := r.ReadFixed(common.HashLength)
	if err != nil {
		return Accepted{}, err
	}
	return Accepted{
		Address:      common.BytesToAddress(addr),
		PublicPort:   port,
		TopBlockHash: common.BytesToHash(hash),
	}, nil
}

// RefusionReason is CannotAccept's reason code.
type RefusionReason uint8

const (
	ReasonBucketFull RefusionReason = iota
	ReasonAlreadyConnected
	ReasonSelfConnect
)

// CannotAccept answers a Handshake when the table has no room, offering
// alternate peers to try instead, mirroring msg::CannotAccept.
type CannotAccept struct {
	Reason    RefusionReason
	Alternates []PeerInfo
}

func (m CannotAccept) Type() MessageType { return TypeCannotAccept }

func (m CannotAccept) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteUint8(uint8(m.Reason))
	w.WriteUint32(uint32(len(m.Alternates)))
	for _, p := range m.Alternates {
		p.serializeInto(w)
	}
	return w.Bytes()
}

func DeserializeCannotAccept(r *serialize.Reader) (CannotAccept, error) {
	reason, err := r.ReadUint8()
	if err != nil {
		return CannotAccept{}, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return CannotAccept{}, err
	}
	alts := make([]PeerInfo, count)
	for i := range alts {
		p, err := deserializePeerInfo(r)
		if err != nil {
			return CannotAccept{}, err
		}
		alts[i] = p
	}
	return CannotAccept{Reason: RefusionReason(reason), Alternates: alts}, nil
}

// Ping/Pong carry no payload, mirroring msg::Ping/msg::Pong.
type Ping struct{}

func (m Ping) Type() MessageType   { return TypePing }
func (m Ping) Serialize() []byte   { return nil }
func DeserializePing(*serialize.Reader) (Ping, error) { return Ping{}, nil }

type Pong struct{}

func (m Pong) Type() MessageType   { return TypePong }
func (m Pong) Serialize() []byte   { return nil }
func DeserializePong(*serialize.Reader) (Pong, error) { return Pong{}, nil }

// Close signals a clean session teardown.
type Close struct{}

func (m Close) Type() MessageType { return TypeClose }
func (m Close) Serialize() []byte { return nil }

// Lookup asks a peer for up to SelectionSize peers close to Address,
// mirroring msg::Lookup.
type Lookup struct {
	Address       common.Address
	SelectionSize uint8
}

func (m Lookup) Type() MessageType { return TypeLookup }

func (m Lookup) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Address[:])
	w.WriteUint8(m.SelectionSize)
	return w.Bytes()
}

func DeserializeLookup(r *serialize.Reader) (Lookup, error) {
	addr, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return Lookup{}, err
	}
	size, err := r.ReadUint8()
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Address: common.BytesToAddress(addr), SelectionSize: size}, nil
}

// LookupResponse answers a Lookup with the closest peers the responder
// knows about, mirroring msg::LookupResponse.
type LookupResponse struct {
	Address common.Address
	Peers   []PeerInfo
}

func (m LookupResponse) Type() MessageType { return TypeLookupResponse }

func (m LookupResponse) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Address[:])
	w.WriteUint32(uint32(len(m.Peers)))
	for _, p := range m.Peers {
		p.serializeInto(w)
	}
	return w.Bytes()
}

func DeserializeLookupResponse(r *serialize.Reader) (LookupResponse, error) {
	addr, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return LookupResponse{}, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return LookupResponse{}, err
	}
	peers := make([]PeerInfo, count)
	for i := range peers {
		p, err := deserializePeerInfo(r)
		if err != nil {
			return LookupResponse{}, err
		}
		peers[i] = p
	}
	return LookupResponse{Address: common.BytesToAddress(addr), Peers: peers}, nil
}

// TransactionMsg gossips a signed transaction, mirroring msg::Transaction.
type TransactionMsg struct {
	Tx *types.Transaction
}

func (m TransactionMsg) Type() MessageType { return TypeTransaction }

func (m TransactionMsg) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteBytes(m.Tx.Serialize())
	return w.Bytes()
}

func DeserializeTransactionMsg(r *serialize.Reader) (TransactionMsg, error) {
	raw, err := r.ReadBytes()
	if err != nil {
		return TransactionMsg{}, err
	}
	tx, err := types.DeserializeTransaction(serialize.NewReader(raw))
	if err != nil {
		return TransactionMsg{}, err
	}
	return TransactionMsg{Tx: tx}, nil
}

// GetBlock requests a block by hash, mirroring msg::GetBlock.
type GetBlock struct {
	Hash common.Hash
}

func (m GetBlock) Type() MessageType { return TypeGetBlock }

func (m GetBlock) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Hash[:])
	return w.Bytes()
}

func DeserializeGetBlock(r *serialize.Reader) (GetBlock, error) {
	h, err := r.ReadFixed(common.HashLength)
	if err != nil {
		return GetBlock{}, err
	}
	return GetBlock{Hash: common.BytesToHash(h)}, nil
}

// BlockNotFound answers a GetBlock for an unknown hash, mirroring
// msg::BlockNotFound.
type BlockNotFound struct {
	Hash common.Hash
}

func (m BlockNotFound) Type() MessageType { return TypeBlockNotFound }

func (m BlockNotFound) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(m.Hash[:])
	return w.Bytes()
}

func DeserializeBlockNotFound(r *serialize.Reader) (BlockNotFound, error) {
	h, err := r.ReadFixed(common.HashLength)
	if err != nil {
		return BlockNotFound{}, err
	}
	return BlockNotFound{Hash: common.BytesToHash(h)}, nil
}

// BlockMsg gossips a full block, mirroring msg::Block.
type BlockMsg struct {
	Block *block.ImmutableBlock
}

func (m BlockMsg) Type() MessageType { return TypeBlock }

func (m BlockMsg) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteBytes(m.Block.Serialize())
	return w.Bytes()
}

func DeserializeBlockMsg(r *serialize.Reader) (BlockMsg, error) {
	raw, err := r.ReadBytes()
	if err != nil {
		return BlockMsg{}, err
	}
	b, err := block.DeserializeImmutable(raw)
	if err != nil {
		return BlockMsg{}, err
	}
	return BlockMsg{Block: b}, nil
}

// Frame prefixes a message's encoded payload with its one-byte type and a
// length, the wire shape spec §6.4 calls "length-prefixed messages tagged
// by a one-byte type".
func Frame(t MessageType, payload []byte) []byte {
	w := serialize.NewWriter()
	w.WriteUint8(uint8(t))
	w.WriteBytes(payload)
	return w.Bytes()
}

// ReadFrame splits a framed message back into its type tag and payload
// reader.
func ReadFrame(data []byte) (MessageType, *serialize.Reader, error) {
	r := serialize.NewReader(data)
	t, err := r.ReadUint8()
	if err != nil {
		return 0, nil, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return 0, nil, err
	}
	return MessageType(t), serialize.NewReader(payload), nil
}
